package llm

// ModelOption is one selectable model configuration as served by
// GET /v1/models. Rows are an immutable snapshot: clients hold the fetched
// list until they choose to refresh.
type ModelOption struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	ModelIdentifier string `json:"model_identifier"`
	BaseURL         string `json:"base_url"`
	Ordering        int    `json:"ordering"`
}
