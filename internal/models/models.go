package models

// TryOnRequest is the body of POST /api/tryon/generate
type TryOnRequest struct {
	PersonImage    string   `json:"person_image"`
	ClothingImage  string   `json:"clothing_image,omitempty"`
	ClothingImages []string `json:"clothing_images,omitempty"`
}

// TryOnResponse is returned for every generate call, successful or not
type TryOnResponse struct {
	Success     bool   `json:"success"`
	ResultImage string `json:"result_image,omitempty"`
	Message     string `json:"message,omitempty"`
	Fallback    bool   `json:"fallback"`
}

// StatusResponse reports whether the provider is usable
type StatusResponse struct {
	Service            string `json:"service"`
	Status             string `json:"status"`
	ProviderConfigured bool   `json:"provider_configured"`
	Model              string `json:"model,omitempty"`
}
