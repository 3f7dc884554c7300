package services

import (
	"errors"
	"sort"

	"rental-pricer/models"
	"rental-pricer/utils"
)

// ErrEmptyPanel signals that no usable comparables matched the target.
// It is distinct from a recommendation of zero.
var ErrEmptyPanel = errors.New("insufficient comparables: widen the filters")

// Evaluation is what the presentation layer renders for one query.
type Evaluation struct {
	Target         models.Target          `json:"target"`
	Params         models.Params          `json:"params"`
	Panel          []*models.Listing      `json:"panel"`
	Recommendation *models.Recommendation `json:"recommendation"`
	ProposedPrice  *float64               `json:"proposed_price,omitempty"`
	Positioning    models.Positioning     `json:"positioning,omitempty"`
}

// Pricer runs panel building and recommendation as one request.
type Pricer struct {
	logger      *utils.Logger
	builder     *PanelBuilder
	recommender *Recommender
}

// NewPricer wires a PanelBuilder and a Recommender sharing logger.
func NewPricer(logger *utils.Logger) *Pricer {
	return &Pricer{
		logger:      logger,
		builder:     NewPanelBuilder(logger),
		recommender: NewRecommender(logger),
	}
}

// Evaluate builds the panel and the recommendation. When proposed is set it
// is positioned against the price range. The returned Evaluation always
// carries the panel (sorted by price); err is ErrEmptyPanel when no
// recommendation could be made.
func (p *Pricer) Evaluate(ds *models.Dataset, target models.Target, params models.Params, proposed *float64) (*Evaluation, error) {
	panel := p.builder.Build(ds, target, params)

	ev := &Evaluation{
		Target: target,
		Params: params,
		Panel:  SortByPrice(panel.Listings),
	}

	reco := p.recommender.Compute(panel, target, params)
	if reco == nil {
		p.logger.Warn("[pricer] Empty panel for target %s %s (stars %v)", target.PostalCode, target.Commune, derefInt(target.Stars))
		return ev, ErrEmptyPanel
	}
	ev.Recommendation = reco

	if proposed != nil {
		ev.ProposedPrice = proposed
		ev.Positioning = Classify(*proposed, reco.PriceRange)
	}
	return ev, nil
}

// SortByPrice returns a copy of rows ordered by ascending price; rows
// without a price come last.
func SortByPrice(rows []*models.Listing) []*models.Listing {
	out := make([]*models.Listing, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.HasPrice() || !b.HasPrice() {
			return a.HasPrice() && !b.HasPrice()
		}
		return *a.PricePerNight < *b.PricePerNight
	})
	return out
}

// WithDatasetMedians fills an unset capacity and surface with the dataset
// medians, the way the input form pre-fills them.
func WithDatasetMedians(target models.Target, ds *models.Dataset) models.Target {
	if ds == nil || len(ds.Listings) == 0 {
		return target
	}
	if target.Capacity == nil {
		var caps []float64
		for _, l := range ds.Listings {
			if l.Capacity != nil {
				caps = append(caps, float64(*l.Capacity))
			}
		}
		if len(caps) > 0 {
			target.Capacity = models.IntPtr(int(median(caps)))
		}
	}
	if target.SurfaceM2 == nil {
		var surfaces []float64
		for _, l := range ds.Listings {
			if l.SurfaceM2 != nil {
				surfaces = append(surfaces, *l.SurfaceM2)
			}
		}
		if len(surfaces) > 0 {
			target.SurfaceM2 = models.FloatPtr(median(surfaces))
		}
	}
	return target
}

func derefInt(v *int) any {
	if v == nil {
		return "unset"
	}
	return *v
}
