// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// aggdemo drives a configurable round loop against the aggregation
// factories, standing in for the training orchestration that would normally
// supply contributor values and consume the aggregate.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jba/slog/handlers/loghandler"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	yaml "gopkg.in/yaml.v2"

	agg "github.com/luke-who/TFF"
	"github.com/luke-who/TFF/transforms/synthetic"
)

type roundConfig struct {
	Rounds  int     `yaml:"rounds"`
	Factory string  `yaml:"factory"`
	Scale   float64 `yaml:"scale"`

	// Fixed contributor values (and, for the mean, weights) reused every
	// round. Ignored when Synthetic is set.
	Values  []float64 `yaml:"values"`
	Weights []float64 `yaml:"weights"`

	Synthetic *synthConfig `yaml:"synthetic"`
}

type synthConfig struct {
	Contributors int     `yaml:"contributors"`
	DropRatio    float64 `yaml:"drop_ratio"`
	Mean         float64 `yaml:"mean"`
	StdDev       float64 `yaml:"stddev"`
	Seed         uint64  `yaml:"seed"`
}

// defaultConfig is the worked example: values (1, 2, 5) summed through a
// round-counter scaling layer for three rounds.
func defaultConfig() roundConfig {
	return roundConfig{
		Rounds:  3,
		Factory: "round-scaling",
		Scale:   2,
		Values:  []float64{1, 2, 5},
	}
}

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "aggdemo",
	Short: "Run composable aggregation processes over a configured round loop",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the configured number of aggregation rounds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := defaultConfig()
		if configPath != "" {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return err
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return errors.Wrapf(err, "parsing %s", configPath)
			}
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML round-loop configuration")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "log every round at debug level")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg roundConfig) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(loghandler.New(os.Stderr, &slog.HandlerOptions{Level: level}))
	pr := message.NewPrinter(language.English)

	valueType := agg.ScalarOf(agg.Float64)
	opts := []agg.Options{agg.Logger(log), agg.Name(cfg.Factory)}

	if cfg.Factory == "mean" {
		return runWeighted(ctx, cfg, valueType, pr, opts)
	}

	factory, err := unweightedFactory(cfg)
	if err != nil {
		return err
	}
	proc, err := factory.Create(valueType, opts...)
	if err != nil {
		return err
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		return err
	}

	var src *synthetic.Source
	if cfg.Synthetic != nil {
		src = synthetic.NewSource(synthetic.Config{
			Contributors: cfg.Synthetic.Contributors,
			DropRatio:    cfg.Synthetic.DropRatio,
			Mean:         cfg.Synthetic.Mean,
			StdDev:       cfg.Synthetic.StdDev,
			Seed:         cfg.Synthetic.Seed,
		})
	}

	for round := 1; round <= cfg.Rounds; round++ {
		values, _, err := roundInput(cfg, src, valueType)
		if err != nil {
			return err
		}
		out, err := proc.Next(ctx, state, values)
		if err != nil {
			return errors.Wrapf(err, "round %d", round)
		}
		state = out.State
		pr.Printf("round %d: contributors=%d result=%v measurements=%v\n",
			round, values.NumMembers(), out.Result, out.Measurements)
	}
	return nil
}

func runWeighted(ctx context.Context, cfg roundConfig, valueType agg.ValueType, pr *message.Printer, opts []agg.Options) error {
	proc, err := agg.MeanFactory{}.Create(valueType, agg.ScalarOf(agg.Float64), opts...)
	if err != nil {
		return err
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		return err
	}

	var src *synthetic.Source
	if cfg.Synthetic != nil {
		src = synthetic.NewSource(synthetic.Config{
			Contributors: cfg.Synthetic.Contributors,
			DropRatio:    cfg.Synthetic.DropRatio,
			Mean:         cfg.Synthetic.Mean,
			StdDev:       cfg.Synthetic.StdDev,
			Seed:         cfg.Synthetic.Seed,
		})
	}

	for round := 1; round <= cfg.Rounds; round++ {
		values, weights, err := weightedRoundInput(cfg, src, valueType)
		if err != nil {
			return err
		}
		out, err := proc.Next(ctx, state, values, weights)
		if err != nil {
			return errors.Wrapf(err, "round %d", round)
		}
		state = out.State
		pr.Printf("round %d: contributors=%d result=%v measurements=%v\n",
			round, values.NumMembers(), out.Result, out.Measurements)
	}
	return nil
}

func unweightedFactory(cfg roundConfig) (agg.UnweightedFactory, error) {
	switch cfg.Factory {
	case "", "sum":
		return agg.SumFactory{}, nil
	case "scaling":
		return agg.ScalingFactory{Factor: cfg.Scale}, nil
	case "round-scaling":
		return agg.RoundScalingFactory{}, nil
	case "composed":
		// Two counter layers; their intermediate scalings compound while
		// the outermost result stays the plain sum.
		return agg.RoundScalingFactory{Inner: agg.RoundScalingFactory{}}, nil
	default:
		return nil, fmt.Errorf("unknown factory %q", cfg.Factory)
	}
}

func roundInput(cfg roundConfig, src *synthetic.Source, t agg.ValueType) (*agg.Federated, *agg.Federated, error) {
	if src != nil {
		return src.NextRound(t)
	}
	values := make([]agg.Value, len(cfg.Values))
	for i, v := range cfg.Values {
		values[i] = agg.Scalar(agg.Float64, v)
	}
	fv, err := agg.AtContributors(values...)
	if err != nil {
		return nil, nil, err
	}
	return fv, nil, nil
}

func weightedRoundInput(cfg roundConfig, src *synthetic.Source, t agg.ValueType) (*agg.Federated, *agg.Federated, error) {
	if src != nil {
		return src.NextRound(t)
	}
	values, _, err := roundInput(cfg, nil, t)
	if err != nil {
		return nil, nil, err
	}
	ws := cfg.Weights
	if len(ws) == 0 {
		ws = make([]float64, len(cfg.Values))
		for i := range ws {
			ws[i] = 1
		}
	}
	if len(ws) != len(cfg.Values) {
		return nil, nil, fmt.Errorf("%d weights for %d values", len(ws), len(cfg.Values))
	}
	weights := make([]agg.Value, len(ws))
	for i, w := range ws {
		weights[i] = agg.Scalar(agg.Float64, w)
	}
	fw, err := agg.AtContributors(weights...)
	if err != nil {
		return nil, nil, err
	}
	return values, fw, nil
}
