package seed

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// tier 员工所在层级，决定薪资区间与职位
type tier int

const (
	tierGroup    tier = iota // 小组，80%
	tierDivision             // 部门，15%
	tierTop                  // 分支机构、事业群、中心，5%
)

var (
	surnames = []string{
		"王", "李", "张", "刘", "陈", "杨", "黄", "赵", "吴", "周",
		"徐", "孙", "马", "朱", "胡", "郭", "何", "高", "林", "罗",
		"郑", "梁", "谢", "宋", "唐", "许", "韩", "冯", "邓", "曹",
		"彭", "曾", "肖", "田", "董", "袁", "潘", "于", "蒋", "蔡",
		"余", "杜", "叶", "程", "苏", "魏", "吕", "丁", "任", "沈",
		"欧阳", "司马", "上官", "诸葛",
	}
	givenChars = []rune("伟芳娜敏静丽强磊军洋勇艳杰娟涛明超秀霞平刚桂英华玉兰萍红鹏辉晨浩宇轩睿博文欣怡梓涵子墨思远雨婷佳琪")

	entryTitles = []string{"实习生", "助理", "专员", "初级工程师"}
	midTitles   = []string{"高级专员", "资深工程师", "工程师", "经理"}
	specialties = []string{"（后端）", "（前端）", "（财务）", "（招聘）", "（运营）", "（数据）", "（测试）", "（销售）", ""}
)

// person 生成一名员工的姓名、职位、入职日期与薪资
func person(rng *rand.Rand, t tier, level int, now time.Time) (name, position string, hired time.Time, salary decimal.Decimal) {
	name = surnames[rng.Intn(len(surnames))]
	for i := 0; i < 1+rng.Intn(2); i++ {
		name += string(givenChars[rng.Intn(len(givenChars))])
	}

	var lo, hi int64
	switch t {
	case tierGroup:
		lo, hi = 40000, 120000
		position = entryTitles[rng.Intn(len(entryTitles))] + specialties[rng.Intn(len(specialties))]
	case tierDivision:
		lo, hi = 90000, 200000
		position = midTitles[rng.Intn(len(midTitles))]
	default:
		lo, hi = 200000, 800000
		position = "部门负责人"
		if level == 0 {
			position = "分公司总经理"
		}
	}
	salary = decimal.NewFromInt(lo + rng.Int63n(hi-lo+1))

	// 近十年内入职
	days := rng.Intn(10 * 365)
	hired = now.AddDate(0, 0, -days).Truncate(24 * time.Hour)
	return name, position, hired, salary
}

// pickTier 80/15/5 分布
func pickTier(rng *rand.Rand) tier {
	switch r := rng.Float64(); {
	case r < 0.80:
		return tierGroup
	case r < 0.95:
		return tierDivision
	default:
		return tierTop
	}
}
