package dto

type GeocodeRequest struct {
	Addresses []string `json:"addresses"`
}

type GeocodeResult struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	Error   string   `json:"error,omitempty"`
	Cached  bool     `json:"cached,omitempty"`
}

type GeocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}
