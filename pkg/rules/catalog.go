package rules

// CatalogEntry is a ready-to-adopt rule template. The catalogue endpoint
// serves these so tenants can see what the evaluation context supports
// before writing their own expressions.
type CatalogEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Expression  string `json:"expression"`
	Action      Action `json:"action"`
	Category    string `json:"category"`
}

var catalog = []CatalogEntry{
	{
		ID:          "critical_risk_block",
		Name:        "Block critical risk",
		Description: "Block when the composed risk score reaches the critical band.",
		Expression:  `risk_score >= 80`,
		Action:      ActionBlock,
		Category:    "risk",
	},
	{
		ID:          "elevated_risk_hold",
		Name:        "Hold elevated risk",
		Description: "Hold orders whose risk score is elevated but below critical.",
		Expression:  `risk_score >= 60 && risk_score < 80`,
		Action:      ActionHold,
		Category:    "risk",
	},
	{
		ID:          "duplicate_customer_hold",
		Name:        "Hold duplicate customers",
		Description: "Hold when the customer matches existing records.",
		Expression:  `size(customer_dedupe_matches) > 0`,
		Action:      ActionHold,
		Category:    "dedupe",
	},
	{
		ID:          "exact_duplicate_block",
		Name:        "Block exact duplicates",
		Description: "Block when any customer match is an exact identity hit.",
		Expression:  `customer_dedupe_matches.exists(m, m.score == 1.0)`,
		Action:      ActionBlock,
		Category:    "dedupe",
	},
	{
		ID:          "high_value_hold",
		Name:        "Hold high-value orders",
		Description: "Hold orders above the high-value threshold for manual review.",
		Expression:  `transaction_amount > 1000.0`,
		Action:      ActionHold,
		Category:    "order",
	},
	{
		ID:          "vip_approve",
		Name:        "Approve VIP customers",
		Description: "Approve outright when the caller marks the customer VIP in metadata.",
		Expression:  `"vip" in metadata && metadata["vip"] == true`,
		Action:      ActionApprove,
		Category:    "customer",
	},
	{
		ID:          "foreign_currency_hold",
		Name:        "Hold foreign-currency orders",
		Description: "Hold orders not settled in the tenant's home currency.",
		Expression:  `currency != "" && currency != "USD"`,
		Action:      ActionHold,
		Category:    "order",
	},
	{
		ID:          "freemail_high_value_hold",
		Name:        "Hold high-value freemail orders",
		Description: "Hold large orders placed from free email providers.",
		Expression:  `transaction_amount > 500.0 && (email.endsWith("@gmail.com") || email.endsWith("@hotmail.com") || email.endsWith("@yandex.ru"))`,
		Action:      ActionHold,
		Category:    "email",
	},
}

// Catalog returns the built-in rule templates.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}
