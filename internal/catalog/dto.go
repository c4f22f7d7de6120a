package catalog

type RateResponse struct {
	DurationType       string `json:"duration_type"`
	MainValuePerUnit   string `json:"main_value_per_unit"`
	OthersValuePerUnit string `json:"others_value_per_unit"`
}

type ResourceResponse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Rates []RateResponse `json:"rates"`
}

type ResourcesResponse struct {
	Resources []ResourceResponse `json:"resources"`
}
