package wizard

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Plan 是可选套餐。
type Plan int

const (
	PlanNone Plan = iota
	PlanBasic
	PlanPlus
)

func (p Plan) String() string {
	switch p {
	case PlanBasic:
		return "basic"
	case PlanPlus:
		return "plus"
	default:
		return "none"
	}
}

// ParsePlan 解析命令行里的套餐名。
func ParsePlan(s string) (Plan, error) {
	switch s {
	case "basic", "free", "FREE":
		return PlanBasic, nil
	case "plus", "PLUS":
		return PlanPlus, nil
	}
	return PlanNone, fmt.Errorf("unknown plan %q", s)
}

// PlanInfo 是展示给用户的套餐说明。
type PlanInfo struct {
	Plan        Plan
	Name        string
	Price       decimal.Decimal
	Description string
}

var plusMonthly = decimal.RequireFromString("25.00")

// Plans 返回套餐列表，免费额度由配置决定。
func Plans(freeMessagesPerDay int) []PlanInfo {
	unit := "messages"
	if freeMessagesPerDay == 1 {
		unit = "message"
	}
	return []PlanInfo{
		{Plan: PlanBasic, Name: "Basic", Price: decimal.Zero, Description: fmt.Sprintf("Free, %d %s/day", freeMessagesPerDay, unit)},
		{Plan: PlanPlus, Name: "Plus", Price: plusMonthly, Description: "Unlimited messages"},
	}
}

// PriceLabel 格式化价格，例如 "$25.00/mo"。
func (p PlanInfo) PriceLabel() string {
	if p.Price.IsZero() {
		return "Free"
	}
	return "$" + p.Price.StringFixed(2) + "/mo"
}
