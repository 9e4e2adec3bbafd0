package main

import (
	"context"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/massn/envordot"
	"github.com/oklog/run"

	"github.com/oqtopus-team/shadow-engine/core"
	"github.com/oqtopus-team/shadow-engine/db"
	"github.com/oqtopus-team/shadow-engine/estimation"
	enginelog "github.com/oqtopus-team/shadow-engine/log"
	"github.com/oqtopus-team/shadow-engine/mitig"
	"github.com/oqtopus-team/shadow-engine/qpu"
	"github.com/oqtopus-team/shadow-engine/shadow"

	"go.uber.org/dig"
	"go.uber.org/zap"
)

var versionByBuildFlag string
var parser *flags.Parser
var engine *Engine

func init() {
	if err := envordot.Load(false, ".env"); err != nil {
		fmt.Printf("Not found \".env\" file. Use only environment variables. Reason:%s\n", err.Error())
	} else {
		fmt.Println("Found \".env\" file. Environment variables are preferred, " +
			"but non-conflicting variables are those in the \".env\" file.")
	}
	engine = &Engine{}
	setParser(engine)
}

type Engine struct {
	DIContainerParameters *DIContainerParameters
	Conf                  *core.Conf
}

type DIContainerParameters struct {
	Backend string `long:"backend" description:"backend-type" default:"simulator" choice:"simulator" env:"SHADOW_ENGINE_BACKEND_TYPE"`
	Store   string `long:"store" description:"artifact-store-type" default:"file" choice:"file" env:"SHADOW_ENGINE_STORE_TYPE"`
}

func setParser(engine *Engine) {
	parser = flags.NewParser(engine, flags.Default)
	parser.ShortDescription = "shadow engine"
	parser.LongDescription = "classical-shadow estimation engine for weighted Pauli observables."
	parser.AddCommand("estimate", "run an estimation", "collect classical shadows and estimate the given observables", newEstimateCmd())
}

func parse() {
	if _, err := parser.Parse(); err != nil {
		code := 1
		if fe, ok := err.(*flags.Error); ok {
			if fe.Type == flags.ErrHelp {
				code = 0
			}
		}
		if code == 1 {
			fmt.Printf("failed to parse flags, because %s\n", err)
		}
		os.Exit(code)
	}
}

func (e *Engine) provideDIContainer() (c *dig.Container, err error) {
	c = dig.New()
	err = c.Provide(func() (core.Backend, error) {
		switch e.DIContainerParameters.Backend {
		case "simulator":
			return &qpu.SimulatorQPU{}, nil
		default:
			return &qpu.SimulatorQPU{}, fmt.Errorf("%s is an unknown backend", e.DIContainerParameters.Backend)
		}
	})
	if err != nil {
		return &dig.Container{}, err
	}
	err = c.Provide(func() (core.ArtifactStore, error) {
		switch e.DIContainerParameters.Store {
		case "file":
			return &db.FileStore{}, nil
		default:
			return &db.FileStore{}, fmt.Errorf("%s is an unknown artifact store", e.DIContainerParameters.Store)
		}
	})
	if err != nil {
		return &dig.Container{}, err
	}
	return
}

func main() {
	parse()
}

type estimateCmd struct {
	Observables      string  `long:"observables" description:"observables as JSON, e.g. [{\"pauli\":\"ZZ\",\"coeff\":1.0}]" default:"[{\"pauli\":\"ZZ\",\"coeff\":1.0}]"`
	ShadowSize       int     `long:"shadow-size" description:"number of shadows to collect, 0 plans it from precision and confidence" default:"0"`
	Precision        float64 `long:"precision" description:"target absolute precision for planning" default:"0.1"`
	Delta            float64 `long:"delta" description:"allowed failure probability for planning" default:"0.05"`
	Seed             int64   `long:"seed" description:"basis sampling seed, 0 means time-seeded"`
	PrepState        int     `long:"prep-state" description:"computational basis state to prepare" default:"0"`
	MedianOfMeans    bool    `long:"median-of-means" description:"use the median-of-means point estimate"`
	NumGroups        int     `long:"num-groups" description:"group count for median-of-means, 0 takes the configured default" default:"0"`
	Mitigate         bool    `long:"mitigate" description:"calibrate readout and use the noise-aware estimator"`
	CalibrationShots int     `long:"calibration-shots" description:"shots per calibration circuit, 0 takes the configured default" default:"0"`
}

func newEstimateCmd() *estimateCmd {
	return &estimateCmd{}
}

func (c *estimateCmd) Execute(args []string) error {
	logger, err := enginelog.SetGlobal(engine.Conf)
	if err != nil {
		fmt.Printf("Failed to setup logger. Reason:%s\n", err)
		return err
	}
	defer logger.Sync()
	core.SetVersion(engine.Conf, versionByBuildFlag)

	core.ResetSetting()
	registerSetting()
	if err := core.ParseSettingFromPath(engine.Conf.SettingPath); err != nil {
		zap.L().Warn(fmt.Sprintf("no usable setting file at %s, using defaults", engine.Conf.SettingPath))
	}

	s := setupSystemComponents(engine.Conf)

	ctx, cancel := context.WithCancel(context.Background())
	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt))
	g.Add(
		func() error {
			defer cancel()
			return c.runPipeline(ctx, s)
		},
		func(error) {
			cancel()
		})
	if err := g.Run(); err != nil {
		if _, ok := err.(run.SignalError); ok {
			zap.L().Info(fmt.Sprintf("stopped by signal:%s", err))
			return nil
		}
		fmt.Fprintf(os.Stderr, "execution error:%v\n", err)
		os.Exit(1)
	}
	return nil
}

func (c *estimateCmd) runPipeline(ctx context.Context, s *core.SystemComponents) error {
	observables, err := core.ParseObservables(c.Observables)
	if err != nil {
		return err
	}

	shadowSetting, configured := shadow.GetShadowSetting()
	shadowSize := c.ShadowSize
	if shadowSize <= 0 && configured && shadowSetting.DefaultShadowSize > 0 {
		zap.L().Info(fmt.Sprintf("using configured shadow size %d", shadowSetting.DefaultShadowSize))
		shadowSize = shadowSetting.DefaultShadowSize
	}
	if shadowSize <= 0 {
		planned, err := estimation.PlanShadowSize(observables, c.Precision, c.Delta)
		if err != nil {
			return err
		}
		zap.L().Info(fmt.Sprintf("planned shadow size %d for precision %g at confidence %g",
			planned, c.Precision, 1-c.Delta))
		shadowSize = planned
	}

	cfg := core.NewShadowConfig(shadowSize)
	cfg.MedianOfMeans = c.MedianOfMeans
	cfg.ConfidenceLevel = shadowSetting.ConfidenceLevel
	cfg.NumGroups = c.NumGroups
	if cfg.NumGroups <= 0 {
		cfg.NumGroups = shadowSetting.NumGroups
	}
	if c.Seed != 0 {
		seed := c.Seed
		cfg.RandomSeed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return s.Invoke(func(backend core.Backend, store core.ArtifactStore) error {
		numQubits := backend.GetDeviceInfo().MaxQubits
		base := core.NewPrepCircuit(numQubits, c.PrepState)
		zap.L().Debug(fmt.Sprintf("base circuit:\n%s", base.ToQASM()))

		generator := shadow.NewGenerator(cfg.Seed())
		record, err := generator.Collect(ctx, backend, base, cfg.ShadowSize)
		if err != nil {
			return err
		}
		recordPath, err := store.SaveRecord(record)
		if err != nil {
			return err
		}
		zap.L().Info(fmt.Sprintf("persisted measurement record to %s", recordPath))

		estimateFn, err := c.buildEstimator(ctx, cfg, backend, store, record, numQubits)
		if err != nil {
			return err
		}
		for _, obs := range observables {
			est, err := estimateFn(obs)
			if err != nil {
				return fmt.Errorf("estimation of %s failed: %w", obs, err)
			}
			fmt.Println(est.ToString())
		}
		return nil
	})
}

func (c *estimateCmd) buildEstimator(
	ctx context.Context,
	cfg core.ShadowConfig,
	backend core.Backend,
	store core.ArtifactStore,
	record *core.MeasurementRecord,
	numQubits int,
) (func(*core.Observable) (*core.ShadowEstimate, error), error) {
	if !c.Mitigate || !cfg.ApplyInverseChannel {
		estimator, err := estimation.NewEstimator(cfg)
		if err != nil {
			return nil, err
		}
		if err := estimator.LoadOutcomes(record); err != nil {
			return nil, err
		}
		return estimator.Estimate, nil
	}

	qubits := make([]int, numQubits)
	for q := range qubits {
		qubits[q] = q
	}
	mitigator, err := mitig.NewMitigator(qubits)
	if err != nil {
		return nil, err
	}
	shots := c.CalibrationShots
	if shots <= 0 {
		shots = mitig.GetMitigationSetting().CalibrationShots
	}
	matrixPath, err := mitigator.Calibrate(ctx, backend, store, shots)
	if err != nil {
		return nil, err
	}
	zap.L().Info(fmt.Sprintf("persisted confusion matrix to %s", matrixPath))
	aware, err := mitig.NewNoiseAwareEstimator(cfg, mitigator)
	if err != nil {
		return nil, err
	}
	if err := aware.LoadOutcomes(record); err != nil {
		return nil, err
	}
	return aware.Estimate, nil
}

func setupSystemComponents(conf *core.Conf) *core.SystemComponents {
	zap.L().Debug(fmt.Sprintf("Providing DI Container with parameters %+v", engine.DIContainerParameters))
	container, err := engine.provideDIContainer()
	if err != nil {
		zap.L().Error(fmt.Sprintf("Failed to setting up DI-Container. Reason:%s", err.Error()))
		panic(err)
	}
	zap.L().Debug("Setting up System Components")
	s := core.NewSystemComponents(container)
	if err := s.Setup(conf); err != nil {
		zap.L().Error(fmt.Sprintf("Failed to setting up Container. Reason:%s", err.Error()))
		panic(err)
	}
	return s
}

func registerSetting() {
	core.RegisterSetting(shadow.SHADOW_SETTING_KEY, shadow.NewShadowSetting())
	core.RegisterSetting(mitig.MITIGATION_SETTING_KEY, mitig.NewMitigationSetting())
}
