package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/dynfit/internal/fitter"
)

var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string        `json:"id"`
	Model        string        `json:"model"`
	Timestamp    time.Time     `json:"timestamp"`
	Seed         int64         `json:"seed"`
	Status       string        `json:"status"`
	Iterations   int           `json:"iterations"`
	BurnIn       int           `json:"burn_in"`
	Temperatures int           `json:"temperatures"`
	Walkers      int           `json:"walkers"`
	Dims         int           `json:"dims"`
	Pool         string        `json:"pool"`
	PSRF         *float64      `json:"psrf,omitempty"`
	Tau          *float64      `json:"tau,omitempty"`
	TauWindow    int           `json:"tau_window,omitempty"`
	Acceptance   []float64     `json:"acceptance,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	FrackTime    time.Duration `json:"frack_time"`
	FrackRounds  int           `json:"frack_rounds"`
}

// Describe fills the result-derived fields of meta.
func Describe(meta RunMetadata, res *fitter.Result) RunMetadata {
	meta.Status = res.Status.String()
	meta.Iterations = res.Iterations
	meta.BurnIn = res.BurnIn
	if res.Ensemble != nil {
		meta.Temperatures = res.Ensemble.NumTemps()
		meta.Walkers = res.Ensemble.NumWalkers()
		meta.Dims = res.Ensemble.NumDims()
	}
	meta.PSRF = res.PSRF
	meta.Tau = res.Autocorr.Tau
	meta.TauWindow = res.Autocorr.Window
	meta.Acceptance = res.Acceptance
	meta.Elapsed = res.Elapsed
	meta.FrackTime = res.Frack.Elapsed
	meta.FrackRounds = res.Frack.Rounds
	return meta
}

// Save writes metadata.json, walkers.csv with the reported states and
// chain.csv with the cold-rung chain. It returns the new run id.
func (s *Store) Save(meta RunMetadata, res *fitter.Result) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runID := fmt.Sprintf("%s_%d_%s", meta.Model, meta.Timestamp.Unix(), uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta = Describe(meta, res)
	meta.ID = runID

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, "walkers.csv"), walkerRows(res.States, meta.Dims)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, "chain.csv"), chainRows(res, meta.Dims)); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func walkerRows(states []fitter.State, dims int) [][]string {
	header := []string{"temperature", "walker", "iteration", "log_likelihood", "log_prior", "log_posterior"}
	for i := 0; i < dims; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	rows := [][]string{header}
	for _, st := range states {
		row := []string{
			strconv.Itoa(st.Temperature),
			strconv.Itoa(st.Walker),
			strconv.Itoa(st.Iteration),
			formatFloat(st.LogLikelihood),
			formatFloat(st.LogPrior),
			formatFloat(st.LogPosterior),
		}
		for _, v := range st.X {
			row = append(row, formatFloat(v))
		}
		rows = append(rows, row)
	}
	return rows
}

func chainRows(res *fitter.Result, dims int) [][]string {
	header := []string{"iteration", "walker", "log_posterior"}
	for i := 0; i < dims; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	rows := [][]string{header}
	if res.Chain == nil {
		return rows
	}
	for i := 0; i < res.Chain.Len(); i++ {
		snap := res.Chain.At(i)
		for w, x := range snap.X[0] {
			row := []string{strconv.Itoa(i), strconv.Itoa(w), formatFloat(snap.LogPosterior[0][w])}
			for _, v := range x {
				row = append(row, formatFloat(v))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) readCSV(runID, name string) ([][]string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}
	return records[1:], nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LoadWalkers reads the reported states of a run.
func (s *Store) LoadWalkers(runID string) ([]fitter.State, error) {
	records, err := s.readCSV(runID, "walkers.csv")
	if err != nil {
		return nil, err
	}
	states := make([]fitter.State, 0, len(records))
	for i, rec := range records {
		if len(rec) < 6 {
			return nil, fmt.Errorf("walkers.csv line %d: %d fields", i+2, len(rec))
		}
		var st fitter.State
		if st.Temperature, err = strconv.Atoi(rec[0]); err != nil {
			return nil, fmt.Errorf("walkers.csv line %d: %w", i+2, err)
		}
		if st.Walker, err = strconv.Atoi(rec[1]); err != nil {
			return nil, fmt.Errorf("walkers.csv line %d: %w", i+2, err)
		}
		if st.Iteration, err = strconv.Atoi(rec[2]); err != nil {
			return nil, fmt.Errorf("walkers.csv line %d: %w", i+2, err)
		}
		vals, err := parseFloats(rec[3:])
		if err != nil {
			return nil, fmt.Errorf("walkers.csv line %d: %w", i+2, err)
		}
		st.LogLikelihood, st.LogPrior, st.LogPosterior = vals[0], vals[1], vals[2]
		st.X = vals[3:]
		states = append(states, st)
	}
	return states, nil
}

// ChainRow is one cold-rung walker at one iteration.
type ChainRow struct {
	Iteration    int
	Walker       int
	LogPosterior float64
	X            []float64
}

func (s *Store) LoadChain(runID string) ([]ChainRow, error) {
	records, err := s.readCSV(runID, "chain.csv")
	if err != nil {
		return nil, err
	}
	rows := make([]ChainRow, 0, len(records))
	for i, rec := range records {
		if len(rec) < 3 {
			return nil, fmt.Errorf("chain.csv line %d: %d fields", i+2, len(rec))
		}
		var row ChainRow
		if row.Iteration, err = strconv.Atoi(rec[0]); err != nil {
			return nil, fmt.Errorf("chain.csv line %d: %w", i+2, err)
		}
		if row.Walker, err = strconv.Atoi(rec[1]); err != nil {
			return nil, fmt.Errorf("chain.csv line %d: %w", i+2, err)
		}
		vals, err := parseFloats(rec[2:])
		if err != nil {
			return nil, fmt.Errorf("chain.csv line %d: %w", i+2, err)
		}
		row.LogPosterior, row.X = vals[0], vals[1:]
		rows = append(rows, row)
	}
	return rows, nil
}

// BestScores returns the highest cold-rung score of every iteration.
func BestScores(rows []ChainRow) []float64 {
	var best []float64
	for _, r := range rows {
		for len(best) <= r.Iteration {
			best = append(best, r.LogPosterior)
		}
		if r.LogPosterior > best[r.Iteration] {
			best[r.Iteration] = r.LogPosterior
		}
	}
	return best
}
