package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/dynfit/internal/fitter"
)

type ExportData struct {
	Run    RunMetadata   `json:"run"`
	States []ExportState `json:"states"`
}

// ExportState is a State with non-finite scores encoded as null, which
// JSON cannot represent otherwise.
type ExportState struct {
	Temperature   int       `json:"temperature"`
	Walker        int       `json:"walker"`
	Iteration     int       `json:"iteration"`
	X             []float64 `json:"x"`
	LogLikelihood *float64  `json:"log_likelihood"`
	LogPrior      *float64  `json:"log_prior"`
	LogPosterior  *float64  `json:"log_posterior"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func ExportJSON(w io.Writer, meta RunMetadata, states []fitter.State) error {
	data := ExportData{Run: meta, States: make([]ExportState, len(states))}
	for i, st := range states {
		data.States[i] = ExportState{
			Temperature:   st.Temperature,
			Walker:        st.Walker,
			Iteration:     st.Iteration,
			X:             st.X,
			LogLikelihood: finite(st.LogLikelihood),
			LogPrior:      finite(st.LogPrior),
			LogPosterior:  finite(st.LogPosterior),
		}
	}
	if meta.PSRF != nil && math.IsInf(*meta.PSRF, 0) {
		data.Run.PSRF = nil
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV writes states in the walkers.csv layout.
func ExportCSV(w io.Writer, states []fitter.State) error {
	dims := 0
	if len(states) > 0 {
		dims = len(states[0].X)
	}
	cw := csv.NewWriter(w)
	return cw.WriteAll(walkerRows(states, dims))
}
