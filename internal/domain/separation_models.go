package domain

// SeparationModelOption describes one pretrained Spleeter preset.
type SeparationModelOption struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Stems       []string `json:"stems"`
	Description string   `json:"description,omitempty"`
	Downloaded  bool     `json:"downloaded"`
	Selected    bool     `json:"selected"`
}
