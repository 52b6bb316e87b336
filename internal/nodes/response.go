package nodes

import (
	"fmt"
	"strconv"
	"strings"

	"ordering_assistant/internal/nlu"
	"ordering_assistant/internal/services"
	"ordering_assistant/pkg"
)

const greeting = "您好！我是YYC³ AI助手，很高兴为您服务。\n\n我可以帮助您：\n• 查看菜单和菜品信息\n• 预订餐桌\n• 了解价格和优惠\n• 咨询营业时间\n• 处理外卖订单"

var greetingSuggestions = []string{"查看菜单", "预订餐桌", "了解营业时间", "咨询价格"}

// ResponseGenerator turns a classified intent into a canned reply. It only
// reads the static menu, so the same input always yields the same reply.
type ResponseGenerator struct {
	menu *services.MenuService
}

// NewResponseGenerator creates a generator over the menu, or the built-in
// menu when nil
func NewResponseGenerator(menu *services.MenuService) *ResponseGenerator {
	if menu == nil {
		menu = services.NewMenuService()
	}
	return &ResponseGenerator{menu: menu}
}

// Generate returns a reply for every intent. Unknown labels get the greeting.
func (g *ResponseGenerator) Generate(intent pkg.Intent, entities []pkg.EntityMatch) pkg.AssistantResponse {
	message, suggestions := g.generateResponse(intent.Name, entities)
	return pkg.AssistantResponse{
		Message:     message,
		Suggestions: append([]string(nil), suggestions...),
		Source:      pkg.SourceFallback,
	}
}

func (g *ResponseGenerator) generateResponse(label string, entities []pkg.EntityMatch) (string, []string) {
	dishes := valuesOfType(entities, nlu.EntityFoodItem)

	switch label {
	case nlu.IntentOrderFood:
		if len(dishes) > 0 {
			order := joinChinese(dishes)
			if qty, ok := nlu.FirstOfType(entities, nlu.EntityQuantity); ok {
				order = qty.Value + order
			}
			return fmt.Sprintf("好的，已为您记下：%s。还需要别的吗？", order),
				[]string{"确认下单", "继续点菜", "查看菜单"}
		}
		return "您想点什么菜呢？我们有各种美味的菜品供您选择。",
			[]string{"查看菜单", "推荐特色菜", "了解今日特价"}

	case nlu.IntentCheckMenu:
		if category, ok := nlu.FirstOfType(entities, nlu.EntityFoodCategory); ok {
			if names := dishNames(g.menu.SearchDishes(category.Value)); len(names) > 0 {
				return fmt.Sprintf("%s有：%s。您需要查看详细菜单吗？", category.Value, joinChinese(names)),
					[]string{"查看完整菜单", "推荐特色菜", "了解今日特价"}
			}
		}
		return fmt.Sprintf("我们的招牌菜有：%s。您需要查看详细菜单吗？", g.signatureList()),
			[]string{"查看完整菜单", "推荐特色菜", "了解今日特价"}

	case nlu.IntentRecommendation:
		return fmt.Sprintf("推荐您尝试我们的招牌菜：%s，都是店里最受欢迎的菜品。", g.signatureList()),
			[]string{"查看完整菜单", "立即点餐", "预订餐桌"}

	case nlu.IntentReservation:
		date, hasDate := nlu.FirstOfType(entities, nlu.EntityDate)
		clock, hasTime := nlu.FirstOfType(entities, nlu.EntityTime)
		if hasDate || hasTime {
			when := strings.TrimSpace(date.Value + clock.Value)
			return fmt.Sprintf("好的，我可以帮您预订%s的座位。请问有几位客人？", when),
				[]string{"立即预订", "查看预订状态", "取消预订"}
		}
		return "好的，我可以帮您预订座位。请问您需要预订什么时间，几位客人？",
			[]string{"立即预订", "查看预订状态", "取消预订"}

	case nlu.IntentPrice:
		for _, name := range dishes {
			if dish, ok := g.menu.Lookup(name); ok {
				return fmt.Sprintf("%s的价格是%s元。需要为您点一份吗？", dish.Name, formatPrice(dish.Price)),
					[]string{"立即点餐", "查看价格表", "了解会员优惠"}
			}
		}
		return fmt.Sprintf("我们的菜品价格从%s元起，套餐价格更优惠。您想了解具体的菜品价格吗？", formatPrice(g.menu.MinPrice(10))),
			[]string{"查看价格表", "了解会员优惠", "咨询套餐信息"}

	case nlu.IntentOpeningHours:
		return "我们的营业时间是：周一至周日 10:00 - 22:00。",
			[]string{"查看详细营业时间", "了解特殊节假日安排"}

	case nlu.IntentDelivery:
		return "我们提供外卖配送服务，可通过美团、饿了么或我们的官方小程序下单。",
			[]string{"立即外卖点餐", "查看配送范围", "了解配送费"}

	case nlu.IntentPromotions:
		return "我们目前有会员折扣和工作日午市套餐优惠。您想了解哪一项？",
			[]string{"了解会员优惠", "查看午市套餐", "查看菜单"}

	case nlu.IntentAllergies:
		return g.allergyResponse(entities)

	case nlu.IntentDietary:
		if r, ok := nlu.FirstOfType(entities, nlu.EntityDietaryRestriction); ok {
			return fmt.Sprintf("我们可以按照%s的需求调整做法，下单时请备注，厨师会为您特别准备。", r.Value),
				[]string{"查看菜单", "联系服务员"}
		}
		return "请告诉我您的饮食需求，我来为您推荐合适的菜品。",
			[]string{"查看菜单", "联系服务员"}

	case nlu.IntentCancelOrder:
		return "好的，我来帮您取消订单。请提供订单号以便查询。",
			[]string{"查看我的订单", "联系人工客服"}

	case nlu.IntentOrderStatus:
		return "请提供您的订单号，我来帮您查询订单状态。",
			[]string{"查看我的订单", "联系人工客服"}

	case nlu.IntentComplain:
		return "非常抱歉给您带来不好的体验，我们会尽快改进。您可以告诉我具体情况吗？",
			[]string{"联系人工客服", "提交意见反馈"}

	case nlu.IntentPraise:
		return "谢谢您的夸奖！欢迎您常来。",
			[]string{"推荐特色菜", "查看菜单"}

	case nlu.IntentLocation:
		return "我们的地址可以在官方小程序的「门店信息」中查看，并支持一键导航。",
			[]string{"查看门店信息", "了解停车信息"}

	default:
		return greeting, greetingSuggestions
	}
}

func (g *ResponseGenerator) allergyResponse(entities []pkg.EntityMatch) (string, []string) {
	suggestions := []string{"查看过敏原说明", "联系服务员"}

	allergen, ok := nlu.FirstOfType(entities, nlu.EntityAllergen)
	if !ok {
		return "请告诉我您对哪种食材过敏，我来帮您筛选菜品。", suggestions
	}

	var containing []string
	for _, d := range g.menu.Dishes() {
		for _, a := range d.Allergens {
			if a == allergen.Value {
				containing = append(containing, d.Name)
				break
			}
		}
	}
	if len(containing) == 0 {
		return fmt.Sprintf("菜单上没有标注含%s的菜品，点餐时仍请告知服务员。", allergen.Value), suggestions
	}
	return fmt.Sprintf("含有%s的菜品有：%s，请避免点这些菜。", allergen.Value, joinChinese(containing)), suggestions
}

func (g *ResponseGenerator) signatureList() string {
	var names []string
	for _, d := range g.menu.Signatures() {
		names = append(names, d.Name)
	}
	if len(names) == 0 {
		names = g.menu.Names()
	}
	return joinChinese(names)
}

func dishNames(dishes []services.Dish) []string {
	names := make([]string, 0, len(dishes))
	for _, d := range dishes {
		names = append(names, d.Name)
	}
	return names
}

// valuesOfType collects distinct values of one entity type in text order
func valuesOfType(entities []pkg.EntityMatch, entityType string) []string {
	seen := map[string]bool{}
	var values []string
	for _, e := range entities {
		if e.Type == entityType && !seen[e.Value] {
			seen[e.Value] = true
			values = append(values, e.Value)
		}
	}
	return values
}

// joinChinese joins items as "A、B和C"
func joinChinese(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], "、") + "和" + items[len(items)-1]
	}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
