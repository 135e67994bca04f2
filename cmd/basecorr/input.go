package main

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/basecorr/basecorr"
	"github.com/meenmo/basecorr/basket"
	"github.com/meenmo/basecorr/calendar"
	"github.com/meenmo/basecorr/cdo"
	"github.com/meenmo/basecorr/config"
	"github.com/meenmo/basecorr/curve"
	"github.com/meenmo/basecorr/strike"
	"github.com/meenmo/basecorr/utils"
)

type calibrationInput struct {
	TaskID       string       `json:"task_id,omitempty"`
	AsOf         string       `json:"as_of"`
	Method       string       `json:"method"`
	StrikeMethod string       `json:"strike_method"`
	Interp       string       `json:"interp"`
	Extrap       string       `json:"extrap"`
	Discipline   string       `json:"discipline"`
	Complement   bool         `json:"complement"`
	OnFactor     bool         `json:"on_factor"`
	Parallel     *bool        `json:"parallel,omitempty"`
	Discount     discountJSON `json:"discount"`
	Basket       basketJSON   `json:"basket"`
	Calendar     string       `json:"calendar"`
	Tenors       []tenorJSON  `json:"tenors"`
	Queries      []queryJSON  `json:"queries"`
}

type discountJSON struct {
	Rate float64            `json:"rate"`
	DFs  map[string]float64 `json:"dfs,omitempty"`
}

type basketJSON struct {
	Names             int     `json:"names"`
	Notional          float64 `json:"notional"`
	Recovery          float64 `json:"recovery"`
	Spread            float64 `json:"spread"`
	DefaultedNotional float64 `json:"defaulted_notional"`
	DefaultedRecovery float64 `json:"defaulted_recovery"`
	QuadraturePoints  int     `json:"quadrature_points"`
}

type tenorJSON struct {
	Name     string        `json:"name"`
	Maturity string        `json:"maturity"`
	Tranches []trancheJSON `json:"tranches"`
}

type trancheJSON struct {
	Attachment float64 `json:"attachment"`
	Detachment float64 `json:"detachment"`
	Premium    float64 `json:"premium"`
	Fee        float64 `json:"fee"`
}

type queryJSON struct {
	Maturity   string  `json:"maturity"`
	Attachment float64 `json:"attachment"`
	Detachment float64 `json:"detachment"`
}

type calibrationOutput struct {
	TaskID  string        `json:"task_id,omitempty"`
	AsOf    string        `json:"as_of,omitempty"`
	Tenors  []tenorOutput `json:"tenors,omitempty"`
	Queries []queryOutput `json:"queries,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type tenorOutput struct {
	Name                string     `json:"name"`
	Maturity            string     `json:"maturity"`
	Detachments         []jsonReal `json:"detachments"`
	Strikes             []jsonReal `json:"strikes"`
	Correlations        []jsonReal `json:"correlations"`
	TrancheCorrelations []jsonReal `json:"tranche_correlations"`
	Failed              bool       `json:"calibration_failed,omitempty"`
	Error               string     `json:"error,omitempty"`
}

type queryOutput struct {
	Maturity           string   `json:"maturity"`
	Attachment         float64  `json:"attachment"`
	Detachment         float64  `json:"detachment"`
	BaseCorrelation    jsonReal `json:"base_correlation"`
	TrancheCorrelation jsonReal `json:"tranche_correlation"`
	Error              string   `json:"error,omitempty"`
}

// jsonReal encodes NaN as null.
type jsonReal float64

func (r jsonReal) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%g", float64(r))), nil
}

func reals(xs []float64) []jsonReal {
	out := make([]jsonReal, len(xs))
	for i, x := range xs {
		out[i] = jsonReal(x)
	}
	return out
}

type request struct {
	asOf     time.Time
	opts     basecorr.Options
	spec     basket.Spec
	discount *curve.DiscountCurve
	tenors   []basecorr.Tenor
	template cdo.Tranche
}

func (in calibrationInput) build(cfg config.Config) (*request, error) {
	asOf, err := utils.ParseDate(in.AsOf)
	if err != nil {
		return nil, fmt.Errorf("invalid as_of: %w", err)
	}
	opts, err := in.options(cfg)
	if err != nil {
		return nil, err
	}
	discount, err := in.Discount.curve(asOf)
	if err != nil {
		return nil, err
	}
	spec, err := in.Basket.spec(asOf)
	if err != nil {
		return nil, err
	}
	if len(in.Tenors) == 0 {
		return nil, fmt.Errorf("no tenors")
	}

	req := &request{
		asOf:     asOf,
		opts:     opts,
		spec:     spec,
		discount: discount,
		template: cdo.Tranche{Effective: asOf, Calendar: calendar.CalendarID(in.Calendar)},
	}
	for _, tn := range in.Tenors {
		maturity, err := utils.ParseDate(tn.Maturity)
		if err != nil {
			return nil, fmt.Errorf("tenor %s: invalid maturity: %w", tn.Name, err)
		}
		b, err := spec.WithMaturity(maturity).Build()
		if err != nil {
			return nil, fmt.Errorf("tenor %s: %w", tn.Name, err)
		}
		pricers := make([]*cdo.Pricer, len(tn.Tranches))
		for i, q := range tn.Tranches {
			tr := req.template.WithLevels(q.Attachment, q.Detachment)
			tr.Name = fmt.Sprintf("%s[%.4g-%.4g]", tn.Name, q.Attachment, q.Detachment)
			tr.Maturity = maturity
			tr.Premium, tr.Fee = q.Premium, q.Fee
			if pricers[i], err = cdo.NewPricer(tr, b, discount); err != nil {
				return nil, fmt.Errorf("tenor %s: %w", tn.Name, err)
			}
		}
		req.tenors = append(req.tenors, basecorr.Tenor{Name: tn.Name, Pricers: pricers})
	}
	return req, nil
}

func (in calibrationInput) options(cfg config.Config) (basecorr.Options, error) {
	opts := basecorr.DefaultOptions()
	opts.Config = cfg
	if in.Parallel != nil {
		opts.Config.Parallel = *in.Parallel
	}
	var err error
	if opts.Method, err = basecorr.ParseMethod(in.Method); err != nil {
		return opts, err
	}
	if in.StrikeMethod != "" {
		if opts.StrikeMethod, err = strike.ParseMethod(in.StrikeMethod); err != nil {
			return opts, err
		}
	}
	if opts.Interp, err = basecorr.ParseInterp(in.Interp); err != nil {
		return opts, err
	}
	if opts.Extrap, err = basecorr.ParseExtrap(in.Extrap); err != nil {
		return opts, err
	}
	if opts.Discipline, err = basecorr.ParseDiscipline(in.Discipline); err != nil {
		return opts, err
	}
	opts.Complement = in.Complement
	opts.OnFactor = in.OnFactor
	return opts, opts.Validate()
}

func (d discountJSON) curve(asOf time.Time) (*curve.DiscountCurve, error) {
	if len(d.DFs) == 0 {
		return curve.NewFlatDiscountCurve(asOf, d.Rate), nil
	}
	dfs := make(map[time.Time]float64, len(d.DFs))
	for s, df := range d.DFs {
		t, err := utils.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("invalid discount date %s: %w", s, err)
		}
		dfs[t] = df
	}
	return curve.NewDiscountCurveFromDFs(asOf, dfs)
}

func (b basketJSON) spec(asOf time.Time) (basket.Spec, error) {
	if b.Names <= 0 {
		return basket.Spec{}, fmt.Errorf("basket needs a positive number of names")
	}
	survival, err := curve.NewSurvivalCurveFromSpread(asOf, b.Spread, b.Recovery)
	if err != nil {
		return basket.Spec{}, err
	}
	// The maturity is replaced per tenor.
	spec := basket.Homogeneous(asOf, asOf.AddDate(1, 0, 0), b.Names, b.Notional, b.Recovery, survival)
	spec.DefaultedNotional = b.DefaultedNotional
	spec.DefaultedRecovery = b.DefaultedRecovery
	spec.QuadraturePoints = b.QuadraturePoints
	return spec, spec.Validate()
}

func report(in calibrationInput, req *request, ts *basecorr.TermStructure) (*calibrationOutput, error) {
	out := &calibrationOutput{TaskID: in.TaskID, AsOf: req.asOf.Format(utils.DateLayout)}
	names, dates := ts.Names(), ts.Dates()
	for i, s := range ts.Smiles() {
		out.Tenors = append(out.Tenors, tenorOutput{
			Name:                names[i],
			Maturity:            dates[i].Format(utils.DateLayout),
			Detachments:         reals(s.Detachments()),
			Strikes:             reals(s.Strikes()),
			Correlations:        reals(s.Correlations()),
			TrancheCorrelations: reals(s.TrancheCorrelations()),
			Failed:              s.CalibrationFailed(),
			Error:               s.ErrorMessage(),
		})
	}
	for _, q := range in.Queries {
		out.Queries = append(out.Queries, query(req, ts, q))
	}
	return out, nil
}

func query(req *request, ts *basecorr.TermStructure, q queryJSON) queryOutput {
	out := queryOutput{
		Maturity:           q.Maturity,
		Attachment:         q.Attachment,
		Detachment:         q.Detachment,
		BaseCorrelation:    jsonReal(math.NaN()),
		TrancheCorrelation: jsonReal(math.NaN()),
	}
	maturity, err := utils.ParseDate(q.Maturity)
	if err != nil {
		out.Error = fmt.Sprintf("invalid maturity: %v", err)
		return out
	}
	b, err := req.spec.WithMaturity(maturity).Build()
	if err != nil {
		out.Error = err.Error()
		return out
	}
	tr := req.template.WithLevels(q.Attachment, q.Detachment)
	tr.Maturity = maturity

	base, err := ts.GetCorrelation(tr, b, req.discount, 0, 0)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.BaseCorrelation = jsonReal(base)
	if q.Attachment > 0 {
		tc, err := ts.TrancheCorrelation(tr, b, req.discount, 0, 0, 0, 0)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.TrancheCorrelation = jsonReal(tc)
	} else {
		out.TrancheCorrelation = jsonReal(base)
	}
	return out
}
