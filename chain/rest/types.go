package rest

// BalanceResponse is the bank balance-by-denom response
type BalanceResponse struct {
	Balance struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balance"`
}

// NodeStatus is the part of the node info the orchestrator checks on startup
type NodeStatus struct {
	BaseURL          string
	Network          string
	Version          string
	AppName          string
	AppVersion       string
	CosmosSdkVersion string
}

// NodeInfoResponse represents the structure of the node_info response
type NodeInfoResponse struct {
	DefaultNodeInfo struct {
		Network string `json:"network"`
		Version string `json:"version"`
	} `json:"default_node_info"`
	ApplicationVersion struct {
		AppName          string `json:"app_name"`
		Version          string `json:"version"`
		CosmosSdkVersion string `json:"cosmos_sdk_version"`
	} `json:"application_version"`
}
