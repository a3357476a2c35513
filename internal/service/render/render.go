// Package render personalizes campaign templates. Substitution is a fixed
// placeholder table, not a templating engine; unrecognized placeholders are
// left verbatim.
package render

import (
	"strings"

	"github.com/pvictorino/zapcampaign/internal/model"
)

// Contract values: campaigns written against the old system rely on these
// exact fallbacks.
const (
	DefaultCoupon = "DESCONTO10"
	MenuURL       = "https://seu-cardapio.com.br"
	DefaultFlavor = "sushi"
)

// Message renders a campaign template for one customer.
func Message(template string, c model.Customer, couponCode string) string {
	coupon := couponCode
	if coupon == "" {
		coupon = DefaultCoupon
	}
	flavor := c.PreferredItems
	if flavor == "" {
		flavor = DefaultFlavor
	}

	out := template
	out = strings.ReplaceAll(out, "{nome_cliente}", c.Name)
	out = strings.ReplaceAll(out, "{cupom_desconto}", coupon)
	out = strings.ReplaceAll(out, "{link_cardapio}", MenuURL)
	out = strings.ReplaceAll(out, "{sabor_preferido}", flavor)

	return out
}
