package nlu

import "ordering_assistant/pkg"

// Intent labels of the default rule table
const (
	IntentOrderFood      = "order_food"
	IntentCheckMenu      = "check_menu"
	IntentOpeningHours   = "ask_opening_hours"
	IntentPromotions     = "ask_promotions"
	IntentReservation    = "make_reservation"
	IntentAllergies      = "ask_allergies"
	IntentDietary        = "ask_dietary"
	IntentPrice          = "ask_price"
	IntentCancelOrder    = "cancel_order"
	IntentComplain       = "complain"
	IntentPraise         = "praise"
	IntentRecommendation = "ask_recommendation"
	IntentOrderStatus    = "check_order_status"
	IntentLocation       = "ask_location"
	IntentDelivery       = "ask_delivery"
)

var intentDescriptions = map[string]string{
	IntentOrderFood:      "点餐意图",
	IntentCheckMenu:      "查看菜单意图",
	IntentOpeningHours:   "询问营业时间意图",
	IntentPromotions:     "询问优惠活动意图",
	IntentReservation:    "预订意图",
	IntentAllergies:      "询问过敏信息意图",
	IntentDietary:        "询问饮食信息意图",
	IntentPrice:          "询问价格意图",
	IntentCancelOrder:    "取消订单意图",
	IntentComplain:       "投诉意图",
	IntentPraise:         "表扬意图",
	IntentRecommendation: "询问推荐意图",
	IntentOrderStatus:    "查看订单状态意图",
	IntentLocation:       "询问位置意图",
	IntentDelivery:       "询问外卖意图",
	pkg.GenericInquiry:   "其他意图",
}

// DescribeIntent returns the display description of an intent label
func DescribeIntent(label string) string {
	if d, ok := intentDescriptions[label]; ok {
		return d
	}
	return "未知意图"
}

func defaultIntentBoost() map[string]float64 {
	return map[string]float64{
		IntentOrderFood:    0.1,
		IntentCheckMenu:    0.1,
		IntentOpeningHours: 0.1,
		IntentPromotions:   0.1,
		IntentReservation:  0.1,
	}
}

// DefaultRules returns the built-in rule table. Order matters: it is the
// final tie-break between rules requiring the same number of entity types.
func DefaultRules() []Rule {
	return []Rule{
		{Label: IntentCancelOrder, Triggers: []string{`(取消|撤销)(订单|我的订单)`}},
		{Label: IntentOrderStatus, Triggers: []string{
			`(我的订单|订单)(怎么样了|的状态|做好了吗|准备好了吗)`,
			`(查看|查询)(我的订单|订单)`,
		}},
		{Label: IntentReservation, Required: []string{EntityDate, EntityTime}, Triggers: []string{
			`(预订|预约|订)(位置|座位|桌|包厢)?`,
		}},
		{Label: IntentReservation, Triggers: []string{
			`(预订|预约|订)(位置|座位|桌|包厢)`,
			`(有没有|有)(位置|座位|空桌|包厢)`,
		}},
		{Label: IntentPrice, Required: []string{EntityFoodItem}, Triggers: []string{`多少钱|价格|价钱|怎么卖`}},
		{Label: IntentPrice, Triggers: []string{`多少钱|的价格|价格表|价钱`}},
		{Label: IntentAllergies, Required: []string{EntityAllergen}, Triggers: []string{`过敏|含不含|有没有|里有`}},
		{Label: IntentAllergies, Triggers: []string{`过敏|过敏原`}},
		{Label: IntentDietary, Required: []string{EntityDietaryRestriction}, Triggers: []string{`有没有|有什么|吗|的(食物|菜品|东西)`}},
		{Label: IntentOrderFood, Required: []string{EntityFoodItem, EntityQuantity}, Triggers: []string{
			`我要|我想|帮我|给我|来|点|要`,
		}},
		{Label: IntentOrderFood, Required: []string{EntityFoodItem}, Triggers: []string{
			`我要|我想|帮我|给我|来一|点一|再来|下单|订购`,
		}},
		{Label: IntentOrderFood, Triggers: []string{`点餐|下单|订购|(我要|我想|帮我)点菜`}},
		{Label: IntentRecommendation, Triggers: []string{
			`(推荐|介绍)一下(你们的)?(招牌菜|特色菜|好吃的|热门的)`,
			`(什么|哪道)(菜|东西)(好吃|推荐|热门)`,
			`招牌菜|特色菜|有什么推荐`,
		}},
		{Label: IntentCheckMenu, Triggers: []string{
			`菜单|菜品|有什么菜|有什么吃的|看菜单`,
			`(有哪些|有什么)(菜色|食物|东西)`,
		}},
		{Label: IntentOpeningHours, Triggers: []string{
			`(什么时候|几点)(开门|营业|关门|打烊)`,
			`营业时间|开放时间|关门时间|打烊时间`,
			`(现在|当前)(开着吗|营业吗|关门了吗|打烊了吗)`,
		}},
		{Label: IntentPromotions, Triggers: []string{`优惠|活动|折扣|促销|特价`}},
		{Label: IntentDelivery, Triggers: []string{`外卖|配送|送餐|送到`}},
		{Label: IntentLocation, Triggers: []string{
			`(你们的|餐厅的)?(位置|地址)(在哪里|是什么|是多少|怎么样)?`,
			`在哪里|怎么走|路线`,
		}},
		{Label: IntentComplain, Triggers: []string{`投诉|抱怨|不满|太差|难吃|太慢`}},
		{Label: IntentPraise, Triggers: []string{`好吃|不错|很好|太棒了|优秀|表扬|赞`}},
	}
}
