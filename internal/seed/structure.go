package seed

import (
	"fmt"
	"math/rand"
	"strings"
)

// Unit 待创建的部门及其下级
type Unit struct {
	Name     string
	Children []Unit
}

// 分支机构（第 1 层）
var branches = []string{
	"总部（北京）",
	"华东分公司（上海）",
	"华南分公司（深圳）",
	"西南分公司（成都）",
	"研发基地（杭州）",
}

// 事业群 → 中心 → 部门（第 2～4 层），每个分支机构结构相同
var blocks = []struct {
	name    string
	tech    bool
	centers []struct {
		name      string
		divisions []string
	}
}{
	{name: "技术事业群", tech: true, centers: []struct {
		name      string
		divisions []string
	}{
		{"软件研发中心", []string{"后端研发部", "前端研发部", "移动端研发部", "测试与自动化部", "架构部"}},
		{"基础设施中心", []string{"运维部", "系统管理部", "数据库部", "技术支持部"}},
		{"数据分析中心", []string{"系统分析部", "数据科学部", "BI 报表部"}},
	}},
	{name: "财务事业群", centers: []struct {
		name      string
		divisions []string
	}{
		{"会计中心", []string{"薪酬核算部", "供应商结算部", "固定资产部", "税务部"}},
		{"计划中心", []string{"预算部", "财务监控部", "投资分析部"}},
	}},
	{name: "人力资源事业群", centers: []struct {
		name      string
		divisions []string
	}{
		{"招聘中心", []string{"技术招聘部", "批量招聘部", "高管寻访部"}},
		{"人才发展中心", []string{"培训部", "企业文化部", "人才储备部"}},
	}},
	{name: "商务事业群", centers: []struct {
		name      string
		divisions []string
	}{
		{"企业客户销售中心", []string{"大客户部", "招投标部", "区域拓展部"}},
		{"市场中心", []string{"数字营销部", "公关传播部", "产品营销部"}},
	}},
}

var (
	groupPrefixes = []string{"小组", "项目组", "团队"}
	projectNames  = []string{"阿尔法", "贝塔", "伽马", "欧米伽", "凤凰", "启明", "核心", "遗留系统"}
)

// Plan 生成五级组织结构：分支机构 → 事业群 → 中心 → 部门 → 2～5 个小组
func Plan(rng *rand.Rand) []Unit {
	out := make([]Unit, 0, len(branches))
	for _, branch := range branches {
		b := Unit{Name: branch}
		for _, blk := range blocks {
			bu := Unit{Name: blk.name}
			for _, ctr := range blk.centers {
				cu := Unit{Name: ctr.name}
				for _, div := range ctr.divisions {
					tech := blk.tech || strings.Contains(ctr.name, "研发")
					cu.Children = append(cu.Children, Unit{Name: div, Children: groups(rng, tech)})
				}
				bu.Children = append(bu.Children, cu)
			}
			b.Children = append(b.Children, bu)
		}
		out = append(out, b)
	}
	return out
}

// groups 技术部门的小组以项目命名，其余按序号命名；序号保证同级不重名
func groups(rng *rand.Rand, tech bool) []Unit {
	n := 2 + rng.Intn(4)
	out := make([]Unit, 0, n)
	for i := 1; i <= n; i++ {
		prefix := groupPrefixes[rng.Intn(len(groupPrefixes))]
		var name string
		if tech {
			name = fmt.Sprintf("%s项目%s-%d", projectNames[rng.Intn(len(projectNames))], prefix, i)
		} else {
			name = fmt.Sprintf("第%d%s", i, prefix)
		}
		out = append(out, Unit{Name: name})
	}
	return out
}

// Count 结构中的部门总数
func Count(units []Unit) int {
	n := 0
	for _, u := range units {
		n += 1 + Count(u.Children)
	}
	return n
}
