package cli

import (
	"context"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/aptrec/internal/application/recommend"
	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
)

// ---------------------------------------------------------------------------
// recommend
// ---------------------------------------------------------------------------

type recommendOptions struct {
	topN       int
	facilities float64
	price      float64
	location   float64
}

func NewRecommendCmd() *cobra.Command {
	o := &recommendOptions{}
	cmd := &cobra.Command{
		Use:   "recommend <property>",
		Short: "Rank the apartments most similar to a property",
		Example: `  aptrec recommend "Maple Court" --top-n 3
  aptrec recommend "Maple Court" --w-price 2 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				return runRecommend(ctx, cmd, cc, args[0], o)
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&o.topN, "top-n", "n", 0, "number of results (0 = configured default)")
	f.Float64Var(&o.facilities, "w-facilities", 0, "facilities weight")
	f.Float64Var(&o.price, "w-price", 0, "price weight")
	f.Float64Var(&o.location, "w-location", 0, "location weight")
	return cmd
}

func runRecommend(ctx context.Context, cmd *cobra.Command, cc *CLIContext, property string, o *recommendOptions) error {
	svc, err := cc.Factories.Service(ctx, cc)
	if err != nil {
		return err
	}

	in := recommend.RecommendInput{Property: property, TopN: o.topN, Transport: "cli"}
	flags := cmd.Flags()
	if flags.Changed("w-facilities") || flags.Changed("w-price") || flags.Changed("w-location") {
		w := svc.Options().Weights
		if flags.Changed("w-facilities") {
			w.Facilities = o.facilities
		}
		if flags.Changed("w-price") {
			w.Price = o.price
		}
		if flags.Changed("w-location") {
			w.Location = o.location
		}
		in.Weights = &w
	}

	out, err := svc.Recommend(ctx, in)
	if err != nil {
		return err
	}
	cc.Logger.Debug("recommendation computed",
		logging.String("property", property), logging.Int("results", len(out.Results)))
	return PrintResult(cmd, recommendView{out})
}

type recommendView struct {
	*recommend.RecommendOutput
}

func (v recommendView) TableHeaders() []string {
	return []string{"Rank", "Name", "Score", "Link"}
}

func (v recommendView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Results))
	for i, r := range v.Results {
		rows = append(rows, []string{strconv.Itoa(i + 1), r.Name, formatScore(r, v.Weights), r.Link})
	}
	return rows
}

// formatScore highlights results scoring at least half of the weight total.
func formatScore(r similarity.Recommendation, w similarity.Weights) string {
	s := strconv.FormatFloat(r.Score, 'f', 4, 64)
	total := w.Facilities + w.Price + w.Location
	if total > 0 && r.Score >= total/2 {
		return color.GreenString(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// nearby
// ---------------------------------------------------------------------------

func NewNearbyCmd() *cobra.Command {
	var radius float64
	cmd := &cobra.Command{
		Use:     "nearby <landmark>",
		Short:   "List apartments within a radius of a landmark",
		Example: `  aptrec nearby "Central Station" --radius 2.5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				svc, err := cc.Factories.Service(ctx, cc)
				if err != nil {
					return err
				}
				out, err := svc.Nearby(ctx, recommend.NearbyInput{Landmark: args[0], RadiusKM: radius})
				if err != nil {
					return err
				}
				return PrintResult(cmd, nearbyView{out})
			})
		},
	}
	cmd.Flags().Float64VarP(&radius, "radius", "r", 0, "radius in km (0 = configured default)")
	return cmd
}

type nearbyView struct {
	*recommend.NearbyOutput
}

func (v nearbyView) TableHeaders() []string { return []string{"Name", "Distance (km)"} }

func (v nearbyView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Properties))
	for _, p := range v.Properties {
		d := strconv.FormatFloat(p.DistanceKM, 'f', 2, 64)
		if p.DistanceKM < 1 {
			d = color.GreenString(d)
		}
		rows = append(rows, []string{p.Name, d})
	}
	return rows
}

// ---------------------------------------------------------------------------
// properties / landmarks
// ---------------------------------------------------------------------------

func NewPropertiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "properties",
		Short: "List the properties in the current snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				svc, err := cc.Factories.Service(ctx, cc)
				if err != nil {
					return err
				}
				names, err := svc.Properties(ctx)
				if err != nil {
					return err
				}
				return PrintResult(cmd, listView{Header: "Property", List: names, Count: len(names)})
			})
		},
	}
}

func NewLandmarksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "landmarks",
		Short: "List the landmarks in the current snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				svc, err := cc.Factories.Service(ctx, cc)
				if err != nil {
					return err
				}
				names, err := svc.Landmarks(ctx)
				if err != nil {
					return err
				}
				return PrintResult(cmd, listView{Header: "Landmark", List: names, Count: len(names)})
			})
		},
	}
}

type listView struct {
	Header string   `json:"-"`
	List   []string `json:"list"`
	Count  int      `json:"count"`
}

func (v listView) TableHeaders() []string { return []string{v.Header} }

func (v listView) TableRows() [][]string {
	rows := make([][]string, len(v.List))
	for i, n := range v.List {
		rows[i] = []string{n}
	}
	return rows
}

//Personal.AI order the ending
