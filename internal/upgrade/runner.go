// Package upgrade aplica los pasos de upgrade del plugin sobre el store:
// cambios de esquema y transformaciones de datos, en orden de versión.
//
// La versión instalada se guarda en config_plugins (auth_classlink/version)
// y avanza después de cada paso. Todos los pasos son idempotentes, así que
// correr el runner dos veces desde cero deja el mismo estado.
package upgrade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/idp"
	"github.com/dropDatabas3/classlink/internal/metrics"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
	"github.com/dropDatabas3/classlink/internal/store"
	"github.com/dropDatabas3/classlink/internal/store/core"
)

// markerName es la fila de config_plugins con la versión instalada.
const markerName = "version"

// Env es lo que recibe cada paso.
type Env struct {
	Store    core.Store
	Plugins  *store.PluginConfigStore
	Accounts *store.AccountStore
	Decoder  idp.Decoder
	Now      func() time.Time
	Log      *zap.Logger
}

// Step es un paso versionado.
type Step struct {
	Version Version
	Name    string
	Apply   func(ctx context.Context, env *Env) error
}

// Result resume una corrida.
type Result struct {
	From     Version
	To       Version
	Applied  []Version
	Skipped  []Version
	Failed   *Version
	Error    error
	Duration time.Duration
}

// Options configura el runner. Todo es opcional.
type Options struct {
	Steps   []Step // default Steps()
	Decoder idp.Decoder
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Now     func() time.Time
}

// Runner aplica los pasos pendientes.
type Runner struct {
	env     *Env
	steps   []Step
	metrics *metrics.Metrics
}

// NewRunner arma el runner sobre s.
func NewRunner(s core.Store, opts Options) *Runner {
	steps := opts.Steps
	if steps == nil {
		steps = Steps()
	}
	steps = append([]Step(nil), steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Version.Less(steps[j].Version) })

	env := &Env{
		Store:   s,
		Plugins: store.NewPluginConfigStore(s),
		Decoder: opts.Decoder,
		Now:     opts.Now,
		Log:     opts.Logger,
	}
	if env.Decoder == nil {
		env.Decoder = idp.JWTDecoder{}
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	if env.Log == nil {
		env.Log = logger.L()
	}
	env.Accounts = &store.AccountStore{DB: s, Now: env.Now}
	env.Log = env.Log.With(logger.Component("upgrade"))
	return &Runner{env: env, steps: steps, metrics: opts.Metrics}
}

// Current retorna la versión guardada (Zero si no hay marcador).
func (r *Runner) Current(ctx context.Context) (Version, error) {
	v, ok, err := r.env.Plugins.Get(ctx, store.PluginClasslink, markerName)
	if err != nil {
		return Zero, fmt.Errorf("read version marker: %w", err)
	}
	if !ok {
		return Zero, nil
	}
	return ParseVersion(v)
}

// Latest es la versión del último paso.
func (r *Runner) Latest() Version {
	if len(r.steps) == 0 {
		return Zero
	}
	return r.steps[len(r.steps)-1].Version
}

// Run aplica los pasos posteriores a la versión guardada.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	from, err := r.Current(ctx)
	if err != nil {
		return &Result{Error: err}, err
	}
	return r.RunFrom(ctx, from)
}

// RunFrom aplica los pasos con versión > from. El primer error corta la
// corrida; el marcador queda en el último paso completado.
func (r *Runner) RunFrom(ctx context.Context, from Version) (*Result, error) {
	start := time.Now()
	res := &Result{From: from, To: from}
	log := logger.OrFrom(ctx, r.env.Log)

	for _, st := range r.steps {
		if !from.Less(st.Version) {
			res.Skipped = append(res.Skipped, st.Version)
			r.metrics.UpgradeStep(metrics.ResultSkipped)
			continue
		}
		if err := ctx.Err(); err != nil {
			return r.fail(res, st, err, start)
		}

		stepLog := log.With(logger.Version(st.Version.String()), logger.Step(st.Name))
		stepStart := time.Now()
		env := *r.env
		env.Log = stepLog
		if err := st.Apply(ctx, &env); err != nil {
			stepLog.Error("upgrade step failed", logger.Err(err))
			return r.fail(res, st, err, start)
		}
		if err := r.env.Plugins.Set(ctx, store.PluginClasslink, markerName, st.Version.String()); err != nil {
			return r.fail(res, st, fmt.Errorf("write version marker: %w", err), start)
		}
		stepLog.Info("upgrade step applied", logger.Duration(time.Since(stepStart)))
		r.metrics.UpgradeStep(metrics.ResultSuccess)
		res.Applied = append(res.Applied, st.Version)
		res.To = st.Version
	}

	res.Duration = time.Since(start)
	log.Info("upgrade finished",
		logger.String("from", res.From.String()),
		logger.String("to", res.To.String()),
		logger.Int("applied", len(res.Applied)),
		logger.Duration(res.Duration))
	return res, nil
}

func (r *Runner) fail(res *Result, st Step, err error, start time.Time) (*Result, error) {
	r.metrics.UpgradeStep(metrics.ResultFailure)
	v := st.Version
	res.Failed = &v
	res.Error = fmt.Errorf("upgrade %s (%s): %w", st.Version, st.Name, err)
	res.Duration = time.Since(start)
	return res, res.Error
}

// Install crea las tablas faltantes del esquema base y aplica los pasos
// pendientes. Sobre una base vacía deja el esquema en la última versión.
func Install(ctx context.Context, s core.Store, opts Options) (*Result, error) {
	created, err := store.EnsureTables(ctx, s, store.BaselineTables()...)
	if err != nil {
		return &Result{Error: err}, fmt.Errorf("install baseline: %w", err)
	}
	r := NewRunner(s, opts)
	if len(created) > 0 {
		r.env.Log.Info("baseline tables created", logger.Any("tables", created))
	}
	return r.Run(ctx)
}
