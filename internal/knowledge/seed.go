package knowledge

// DefaultSnippets describe the agency's service catalog and are loaded
// into a fresh knowledge base by `knowledgectl setup` or the seed flag.
var DefaultSnippets = []Snippet{
	{ID: 1, Category: "automation", Text: "We build Telegram bots that automate customer intake: greeting new leads, qualifying them with a short questionnaire, and routing hot leads to a human manager. Typical delivery time is two to three weeks."},
	{ID: 2, Category: "integrations", Text: "Our bots integrate with CRMs (amoCRM, Bitrix24, HubSpot), payment providers (Stripe, YooKassa), and Google Sheets. Webhook-based integrations with custom backends are also available."},
	{ID: 3, Category: "ecommerce", Text: "For online shops we deliver catalog bots with cart and checkout inside the chat, order status notifications, and abandoned-cart reminders. Payment acceptance is built in from day one."},
	{ID: 4, Category: "education", Text: "For schools and course authors we build enrollment bots: course catalogs, lesson drip delivery, homework collection, and automatic reminders that cut no-show rates for webinars."},
	{ID: 5, Category: "community", Text: "We set up community management bots: join-request screening, anti-spam moderation, scheduled digests, and member analytics for channels and groups of any size."},
	{ID: 6, Category: "analytics", Text: "Every bot ships with an analytics dashboard: funnel conversion per step, response times, and daily active users. Data can be exported to your own BI tooling."},
}

// fallbackSnippets are served verbatim when the knowledge base is
// unconfigured, degraded, or failing mid-request.
var fallbackSnippets = []Snippet{
	{Category: "automation", Text: "We develop custom Telegram bots for lead capture, customer support, and sales automation, tailored to your business processes."},
	{Category: "integrations", Text: "Our bots connect to CRMs, payment systems, and spreadsheets so leads and orders land where your team already works."},
	{Category: "process", Text: "A typical project starts with a short discovery call, followed by a fixed-price proposal and delivery within a few weeks."},
}

// FallbackSnippets returns a copy of the fixed fallback set.
func FallbackSnippets() []Snippet {
	out := make([]Snippet, len(fallbackSnippets))
	copy(out, fallbackSnippets)
	return out
}
