package repository

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern 构造 ILIKE 的“包含”模式，转义通配符；关键字为空时返回空串
func containsPattern(keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(keyword) + "%"
}
