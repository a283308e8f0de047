package separate

import "vocal-splitter/internal/domain"

var modelCatalog = []domain.SeparationModelOption{
	{
		ID:          "spleeter:2stems",
		Name:        "2 stems",
		Stems:       []string{"vocals", "accompaniment"},
		Description: "Vocals and accompaniment.",
	},
	{
		ID:          "spleeter:4stems",
		Name:        "4 stems",
		Stems:       []string{"vocals", "drums", "bass", "other"},
		Description: "Vocals, drums, bass and everything else.",
	},
	{
		ID:          "spleeter:5stems",
		Name:        "5 stems",
		Stems:       []string{"vocals", "drums", "bass", "piano", "other"},
		Description: "Adds a separate piano stem.",
	},
	{
		ID:          "spleeter:2stems-16kHz",
		Name:        "2 stems (16 kHz)",
		Stems:       []string{"vocals", "accompaniment"},
		Description: "2 stems with a model trained up to 16 kHz.",
	},
	{
		ID:          "spleeter:4stems-16kHz",
		Name:        "4 stems (16 kHz)",
		Stems:       []string{"vocals", "drums", "bass", "other"},
		Description: "4 stems with a model trained up to 16 kHz.",
	},
	{
		ID:          "spleeter:5stems-16kHz",
		Name:        "5 stems (16 kHz)",
		Stems:       []string{"vocals", "drums", "bass", "piano", "other"},
		Description: "5 stems with a model trained up to 16 kHz.",
	},
}

// Models returns a copy of the known Spleeter presets.
func Models() []domain.SeparationModelOption {
	out := make([]domain.SeparationModelOption, len(modelCatalog))
	for i, m := range modelCatalog {
		m.Stems = append([]string(nil), m.Stems...)
		out[i] = m
	}
	return out
}

// LookupModel finds a preset by its Spleeter id.
func LookupModel(id string) (domain.SeparationModelOption, bool) {
	for _, m := range modelCatalog {
		if m.ID == id {
			m.Stems = append([]string(nil), m.Stems...)
			return m, true
		}
	}
	return domain.SeparationModelOption{}, false
}

// ModelCacheName is the directory Spleeter downloads a preset's weights into,
// relative to MODEL_PATH.
func ModelCacheName(id string) string {
	name := id
	if i := len("spleeter:"); len(id) > i && id[:i] == "spleeter:" {
		name = id[i:]
	}
	return name
}
