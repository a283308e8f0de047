package domain

// InputInfo summarizes what could be read from a selected audio file.
type InputInfo struct {
	Path     string `json:"path"`
	FileType string `json:"fileType"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	HasTags  bool   `json:"hasTags"`
}
