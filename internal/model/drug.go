package model

// NotAvailable fills label sections the API did not return.
const NotAvailable = "Not available"

// DrugMapping maps a locally used drug name to the name openFDA knows.
type DrugMapping struct {
	LocalName  string `json:"local_name"`
	SearchName string `json:"search_name"`
}

// DefaultDrugMappings seed the drug map file on first run.
var DefaultDrugMappings = []DrugMapping{
	{LocalName: "paracetamol", SearchName: "acetaminophen"},
	{LocalName: "crocin", SearchName: "acetaminophen"},
	{LocalName: "calpol", SearchName: "acetaminophen"},
	{LocalName: "dolo", SearchName: "acetaminophen"},
	{LocalName: "combiflam", SearchName: "ibuprofen"},
	{LocalName: "brufen", SearchName: "ibuprofen"},
	{LocalName: "ibuprofen", SearchName: "ibuprofen"},
	{LocalName: "aspirin", SearchName: "aspirin"},
	{LocalName: "disprin", SearchName: "aspirin"},
	{LocalName: "benadryl", SearchName: "diphenhydramine"},
}

type DrugInfo struct {
	Name             string `json:"name"`
	SearchName       string `json:"search_name"`
	Purpose          string `json:"purpose"`
	Warnings         string `json:"warnings"`
	ActiveIngredient string `json:"active_ingredient"`
}
