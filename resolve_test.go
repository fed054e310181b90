package knot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refKey(name string) Key  { return KeyOf(OpaqueType(name), "") }
func primKey(name string) Key { return KeyOf(PrimitiveType(name), "") }

func errorMessages(res *Result) []string {
	var msgs []string
	for _, d := range res.Diagnostics {
		if d.Severity == Error {
			msgs = append(msgs, d.Message)
		}
	}
	return msgs
}

func requireError(t *testing.T, res *Result, substr string) Diagnostic {
	t.Helper()
	for _, d := range res.Diagnostics {
		if d.Severity == Error && strings.Contains(d.Message, substr) {
			return d
		}
	}
	require.Failf(t, "diagnostic not found", "want error containing %q, have %v", substr, errorMessages(res))
	return Diagnostic{}
}

func planFor(t *testing.T, res *Result, component string) *GenerationPlan {
	t.Helper()
	for _, p := range res.Plans {
		if p.Component == component {
			return p
		}
	}
	require.Failf(t, "plan not found", "no plan for %s", component)
	return nil
}

func stepFor(t *testing.T, plan *GenerationPlan, key Key) Step {
	t.Helper()
	for _, s := range plan.Steps {
		if s.Key == key {
			return s
		}
	}
	require.Failf(t, "step not found", "no step for %s in %s", key, plan.Component)
	return Step{}
}

func hasStep(plan *GenerationPlan, key Key) bool {
	for _, s := range plan.Steps {
		if s.Key == key {
			return true
		}
	}
	return false
}

func TestResolveSingleProvision(t *testing.T) {
	logger := refKey("app.Logger")
	root := NewComponent("App").
		Install(NewModule("LogModule", Provision(logger).From("provideLogger"))).
		EntryPoint(logger)

	res := Resolve(root)
	require.NoError(t, res.Err())
	require.Len(t, res.Plans, 1)

	plan := planFor(t, res, "App")
	step := stepFor(t, plan, logger)
	assert.Equal(t, Inline, step.Strategy)
	assert.Equal(t, OriginAccessor, step.Origin)
	assert.True(t, step.NilCheck, "reference-typed accessor gets a nil check")
	assert.Empty(t, step.Dependencies)

	b, ok := res.Graph.Binding(logger)
	require.True(t, ok)
	assert.Equal(t, logger, b.Key())
	owner, ok := res.Graph.Owner(logger)
	require.True(t, ok)
	assert.Equal(t, root, owner)
}

func TestResolveTransitiveDependencies(t *testing.T) {
	svc := refKey("app.Service")
	repo := refKey("app.Repository")
	db := refKey("app.Database")
	root := NewComponent("App").
		Install(NewModule("AppModule",
			Provision(svc, repo),
			Provision(repo, db),
			Provision(db),
		)).
		EntryPoint(svc)

	res := Resolve(root)
	require.NoError(t, res.Err())
	plan := planFor(t, res, "App")
	require.Len(t, plan.Steps, 3)

	index := make(map[Key]int)
	for i, s := range plan.Steps {
		index[s.Key] = i
	}
	assert.Less(t, index[db], index[repo], "dependency precedes dependent")
	assert.Less(t, index[repo], index[svc])
	assert.Equal(t, OriginProvider, stepFor(t, plan, repo).Origin)
}

func TestMissingBinding(t *testing.T) {
	svc := refKey("app.Service")
	repo := refKey("app.Repository")
	root := NewComponent("App").
		Install(NewModule("AppModule", Provision(svc, repo))).
		EntryPoint(svc)

	res := Resolve(root)
	require.Error(t, res.Err())
	assert.Nil(t, res.Plans, "no plans on resolution error")

	d := requireError(t, res, "app.Repository cannot be provided without an explicit binding")
	assert.Equal(t, []Key{svc}, d.Path, "path names the requesting chain")

	missing := res.Graph.Missing()
	require.Len(t, missing, 1)
	assert.Equal(t, repo, missing[0])
	assert.Equal(t, []Key{svc}, res.Graph.MissingPath(repo))
}

func TestMissingBindingsAggregate(t *testing.T) {
	a := refKey("A")
	root := NewComponent("App").
		Install(NewModule("M", Provision(a, refKey("B"), refKey("C")))).
		EntryPoint(a)

	res := Resolve(root)
	require.Error(t, res.Err())
	assert.Len(t, errorMessages(res), 2, "every missing dependency reported, not just the first")
}

func TestUnbindableKinds(t *testing.T) {
	cases := []struct {
		name string
		key  Key
	}{
		{"array", KeyOf(ArrayOf(OpaqueType("java.lang.String")), "")},
		{"wildcard", KeyOf(WildcardType("Number"), "")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := NewComponent("App").EntryPoint(tc.key)
			res := Resolve(root)
			require.Error(t, res.Err())
			requireError(t, res, tc.key.String()+" cannot be provided without an explicit binding")
			assert.Empty(t, res.Graph.Missing(),
				"no later generation round can supply these, so they are not retryable")
		})
	}
}

func TestDuplicateBindings(t *testing.T) {
	greeting := KeyOf(PrimitiveType("string"), "greeting")
	dep := refKey("unprovided.Dep")
	root := NewComponent("App").
		Install(
			NewModule("ModuleA", Provision(greeting, dep).From("provideA")),
			NewModule("ModuleB", Provision(greeting).From("provideB")),
		).
		EntryPoint(greeting)

	res := Resolve(root)
	require.Error(t, res.Err())

	d := requireError(t, res, "@greeting string is bound multiple times")
	require.Len(t, d.Bindings, 2, "the conflict enumerates every declaration")
	rendered := d.String()
	assert.Contains(t, rendered, "ModuleA.provideA")
	assert.Contains(t, rendered, "ModuleB.provideB")

	// The duplicate halts expansion: its unprovided dependency is not
	// reported as a second, derivative error.
	assert.Len(t, errorMessages(res), 1)
	assert.NotContains(t, errorMessages(res)[0], "unprovided.Dep")
}

func TestDuplicateAcrossParentAndChild(t *testing.T) {
	cfg := refKey("app.Config")
	child := NewComponent("Request").
		Install(NewModule("RequestModule", Provision(cfg).From("provideRequestConfig"))).
		EntryPoint(cfg)
	root := NewComponent("App").
		Install(NewModule("AppModule", Provision(cfg).From("provideAppConfig"))).
		Child(child)

	res := Resolve(root)
	require.Error(t, res.Err())
	requireError(t, res, "app.Config is bound multiple times")
}

func TestShadowedInheritedResolution(t *testing.T) {
	// The parent settles the key from its own entry point before the
	// child is reached; the child's conflicting declaration is still an
	// error, not a silent shadow.
	cfg := refKey("app.Config")
	child := NewComponent("Request").
		Install(NewModule("RequestModule", Provision(cfg).From("provideRequestConfig"))).
		EntryPoint(cfg)
	root := NewComponent("App").
		Install(NewModule("AppModule", Provision(cfg).From("provideAppConfig"))).
		EntryPoint(cfg).
		Child(child)

	res := Resolve(root)
	require.Error(t, res.Err())
	requireError(t, res, "app.Config is bound multiple times")
}

func TestEagerCycleRejected(t *testing.T) {
	a, b, c := refKey("A"), refKey("B"), refKey("C")
	root := NewComponent("App").
		Install(NewModule("M",
			Provision(a, b),
			Provision(b, c),
			Provision(c, a),
		)).
		EntryPoint(a)

	res := Resolve(root)
	require.Error(t, res.Err())
	d := requireError(t, res, "dependency cycle")
	assert.Contains(t, d.Message, "A -> B -> C -> A")
	assert.ElementsMatch(t, []Key{a, b, c}, res.Graph.CycleKeys())
}

func TestDeferredEdgeLegalizesCycle(t *testing.T) {
	a, b, c := refKey("A"), refKey("B"), refKey("C")
	deferredA := KeyOf(DeferredOf(OpaqueType("A")), "")
	root := NewComponent("App").
		Install(NewModule("M",
			Provision(a, b),
			Provision(b, c),
			Provision(c, deferredA),
		)).
		EntryPoint(a)

	res := Resolve(root)
	require.NoError(t, res.Err())
	assert.Empty(t, res.Graph.CycleKeys())

	plan := planFor(t, res, "App")
	step := stepFor(t, plan, deferredA)
	assert.Equal(t, DeferredWrapper, step.Strategy)
	assert.Equal(t, []Key{a}, step.Dependencies)
}

func TestSelfCycleThroughDeferred(t *testing.T) {
	a := refKey("A")
	deferredA := KeyOf(DeferredOf(OpaqueType("A")), "")
	root := NewComponent("App").
		Install(NewModule("M", Provision(a, deferredA))).
		EntryPoint(a)

	res := Resolve(root)
	require.NoError(t, res.Err())
}

func TestQualifiersDistinguishKeys(t *testing.T) {
	plain := primKey("string")
	named := KeyOf(PrimitiveType("string"), "greeting")
	root := NewComponent("App").
		Install(NewModule("M",
			Provision(plain).From("providePlain"),
			Provision(named).From("provideNamed"),
		)).
		EntryPoint(plain, named)

	res := Resolve(root)
	require.NoError(t, res.Err())
	plan := planFor(t, res, "App")
	assert.Len(t, plan.Steps, 2)
	assert.Equal(t, "@greeting string", named.String())
}

func TestDelegateAlias(t *testing.T) {
	iface := refKey("app.Service")
	impl := refKey("app.ServiceImpl")
	root := NewComponent("App").
		Install(NewModule("M",
			Delegate(iface, impl),
			Provision(impl),
		)).
		EntryPoint(iface)

	res := Resolve(root)
	require.NoError(t, res.Err())
	plan := planFor(t, res, "App")
	assert.Equal(t, impl, plan.Aliases[iface])
	assert.False(t, hasStep(plan, iface), "an unscoped delegate synthesizes no instance")
	assert.True(t, hasStep(plan, impl))
}

func TestDelegateToSelf(t *testing.T) {
	k := refKey("app.Service")
	root := NewComponent("App").
		Install(NewModule("M", Delegate(k, k))).
		EntryPoint(k)

	res := Resolve(root)
	require.Error(t, res.Err())
	requireError(t, res, "app.Service delegates to itself")
}

func TestCollectionMultibinding(t *testing.T) {
	task := OpaqueType("app.Task")
	tasks := KeyOf(SliceOf(task), "")
	cleanup := refKey("app.CleanupTask")
	report := refKey("app.ReportTask")
	root := NewComponent("App").
		Install(
			NewModule("CleanupModule",
				Provision(cleanup),
				IntoCollection(KeyOf(task, ""), cleanup).From("bindCleanup"),
			),
			NewModule("ReportModule",
				Provision(report),
				IntoCollection(KeyOf(task, ""), report).From("bindReport"),
			),
		).
		EntryPoint(tasks)

	res := Resolve(root)
	require.NoError(t, res.Err())

	agg, ok := res.Graph.Binding(tasks)
	require.True(t, ok)
	assert.Equal(t, []Key{cleanup, report}, agg.Dependencies(),
		"contributions aggregate in module order then declaration order")
	require.Len(t, agg.Contributions(), 2)
	assert.Equal(t, "CleanupModule", agg.Contributions()[0].Module().Name())
	assert.Equal(t, "ReportModule", agg.Contributions()[1].Module().Name())

	plan := planFor(t, res, "App")
	step := stepFor(t, plan, tasks)
	assert.Equal(t, Inline, step.Strategy)
	assert.False(t, step.NilCheck, "aggregates are synthesized, never absent")
}

func TestEmptyCollectionIsMissing(t *testing.T) {
	tasks := KeyOf(SliceOf(OpaqueType("app.Task")), "")
	root := NewComponent("App").EntryPoint(tasks)

	res := Resolve(root)
	require.Error(t, res.Err())
	requireError(t, res, "[]app.Task cannot be provided without an explicit binding")
}

func TestMapMultibindingDuplicateKey(t *testing.T) {
	handler := OpaqueType("app.Handler")
	handlers := KeyOf(MapOf("string", handler), "")
	root := NewComponent("App").
		Install(NewModule("M",
			IntoMap("string", "login", KeyOf(handler, "")).From("bindLogin"),
			IntoMap("string", "login", KeyOf(handler, "")).From("bindLoginAgain"),
		)).
		EntryPoint(handlers)

	res := Resolve(root)
	require.Error(t, res.Err())
	d := requireError(t, res, "duplicate map key login for map[string]app.Handler")
	require.Len(t, d.Bindings, 2)
	assert.Equal(t, "login", d.Bindings[0].MapKey())
}

func TestMixedMultiboundAndUniqueIsDuplicate(t *testing.T) {
	task := OpaqueType("app.Task")
	elem := KeyOf(task, "")
	tasks := KeyOf(SliceOf(task), "")
	root := NewComponent("App").
		Install(NewModule("M",
			Provision(tasks).From("provideAllTasks"),
			IntoCollection(elem).From("bindTask"),
		)).
		EntryPoint(tasks)

	res := Resolve(root)
	require.Error(t, res.Err())
	requireError(t, res, "[]app.Task is bound multiple times")
}

func TestSharedModulesAggregateInInstallOrder(t *testing.T) {
	task := OpaqueType("app.Task")
	tasks := KeyOf(SliceOf(task), "")
	cleanup := refKey("app.CleanupTask")
	report := refKey("app.ReportTask")
	cleanupModule := NewModule("CleanupModule",
		Provision(cleanup),
		IntoCollection(KeyOf(task, ""), cleanup).From("bindCleanup"),
	)
	reportModule := NewModule("ReportModule",
		Provision(report),
		IntoCollection(KeyOf(task, ""), report).From("bindReport"),
	)
	session := refKey("app.Session")
	child := NewComponent("Request").
		Install(reportModule, cleanupModule,
			NewModule("RequestModule", Provision(session))).
		EntryPoint(session)
	// The child installs the shared modules in the opposite order and
	// is reached before the root's collection resolves.
	root := NewComponent("App").
		Install(NewModule("AppModule").Declares(child)).
		Install(cleanupModule, reportModule).
		EntryPoint(child.FactoryKey(), tasks)

	res := Resolve(root)
	require.NoError(t, res.Err())

	agg, ok := res.Graph.Binding(tasks)
	require.True(t, ok)
	assert.Equal(t, []Key{cleanup, report}, agg.Dependencies(),
		"aggregation follows the requesting component's own install order")
}

func TestResolveAllSharedModulesKeepPerRootOrder(t *testing.T) {
	task := OpaqueType("app.Task")
	tasks := KeyOf(SliceOf(task), "")
	cleanup := refKey("app.CleanupTask")
	report := refKey("app.ReportTask")
	cleanupModule := NewModule("CleanupModule",
		Provision(cleanup),
		IntoCollection(KeyOf(task, ""), cleanup).From("bindCleanup"),
	)
	reportModule := NewModule("ReportModule",
		Provision(report),
		IntoCollection(KeyOf(task, ""), report).From("bindReport"),
	)
	one := NewComponent("One").
		Install(cleanupModule, reportModule).
		EntryPoint(tasks)
	two := NewComponent("Two").
		Install(reportModule, cleanupModule).
		EntryPoint(tasks)

	results := ResolveAll(one, two)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err())
	require.NoError(t, results[1].Err())

	aggOne, ok := results[0].Graph.Binding(tasks)
	require.True(t, ok)
	assert.Equal(t, []Key{cleanup, report}, aggOne.Dependencies())
	aggTwo, ok := results[1].Graph.Binding(tasks)
	require.True(t, ok)
	assert.Equal(t, []Key{report, cleanup}, aggTwo.Dependencies(),
		"each root aggregates in its own install order")
}

func TestContributionBelowInheritedUniqueBinding(t *testing.T) {
	task := OpaqueType("app.Task")
	tasks := KeyOf(SliceOf(task), "")
	audit := refKey("app.AuditTask")
	child := NewComponent("Request").
		Install(NewModule("RequestModule",
			Provision(audit),
			IntoCollection(KeyOf(task, ""), audit).From("bindAudit"),
		)).
		EntryPoint(tasks)
	root := NewComponent("App").
		Install(NewModule("AppModule", Provision(tasks).From("provideAllTasks"))).
		EntryPoint(tasks).
		Child(child)

	res := Resolve(root)
	require.Error(t, res.Err())
	requireError(t, res, "[]app.Task is bound multiple times")
}

func TestContributionBelowInheritedAggregateAllowed(t *testing.T) {
	task := OpaqueType("app.Task")
	tasks := KeyOf(SliceOf(task), "")
	cleanup := refKey("app.CleanupTask")
	audit := refKey("app.AuditTask")
	child := NewComponent("Request").
		Install(NewModule("RequestModule",
			Provision(audit),
			IntoCollection(KeyOf(task, ""), audit).From("bindAudit"),
		)).
		EntryPoint(tasks)
	root := NewComponent("App").
		Install(NewModule("AppModule",
			Provision(cleanup),
			IntoCollection(KeyOf(task, ""), cleanup).From("bindCleanup"),
		)).
		EntryPoint(tasks).
		Child(child)

	res := Resolve(root)
	require.NoError(t, res.Err(),
		"a contribution under an inherited aggregate is not a competing declaration")
}

func TestBuilderInstances(t *testing.T) {
	token := KeyOf(PrimitiveType("string"), "apiToken")
	tracer := refKey("app.Tracer")
	root := NewComponent("App").
		BindsInstance(token).
		OptionalInstance(tracer).
		EntryPoint(token, tracer)

	res := Resolve(root)
	require.NoError(t, res.Err())
	plan := planFor(t, res, "App")

	required := stepFor(t, plan, token)
	assert.Equal(t, BuilderSupplied, required.Strategy)
	assert.False(t, required.NilCheck, "builder enforcement happens at assembly, not access")
	assert.True(t, required.Binding.Required())

	optional := stepFor(t, plan, tracer)
	assert.Equal(t, BuilderSupplied, optional.Strategy)
	assert.False(t, optional.NilCheck, "optional instances are nullable")
	assert.False(t, optional.Binding.Required())
}

func TestComponentDependency(t *testing.T) {
	logger := refKey("app.Logger")
	svc := refKey("app.Service")
	backend := NewComponent("Backend").
		Install(NewModule("BackendModule", Provision(logger))).
		EntryPoint(logger)
	front := NewComponent("Front").
		DependsOn(backend).
		Install(NewModule("FrontModule", Provision(svc, logger))).
		EntryPoint(svc)

	res := Resolve(front)
	require.NoError(t, res.Err())
	plan := planFor(t, res, "Front")

	step := stepFor(t, plan, logger)
	assert.Equal(t, BuilderSupplied, step.Strategy)
	assert.True(t, step.NilCheck, "a dependency accessor may misbehave and return nil")
	assert.Contains(t, step.Binding.String(), "Backend accessor")
}

func TestSubcomponentViaModuleDeclaration(t *testing.T) {
	session := refKey("app.Session")
	child := NewComponent("Request").
		Install(NewModule("RequestModule", Provision(session))).
		EntryPoint(session)
	root := NewComponent("App").
		Install(NewModule("AppModule").Declares(child)).
		EntryPoint(child.FactoryKey())

	res := Resolve(root)
	require.NoError(t, res.Err())
	require.Len(t, res.Plans, 2)

	appPlan := planFor(t, res, "App")
	assert.True(t, hasStep(appPlan, child.FactoryKey()))
	assert.Empty(t, appPlan.PrunedSubcomponents)

	reqPlan := planFor(t, res, "Request")
	assert.True(t, hasStep(reqPlan, session))

	subs := res.Graph.Subgraphs()
	require.Len(t, subs, 1)
	assert.Equal(t, "Request", subs[0].Component().Name())
	assert.Contains(t, subs[0].Keys(), session)
}

func TestUnreachedSubcomponentPruned(t *testing.T) {
	reached := NewComponent("Reached").EntryPoint(refKey("A"))
	ignored := NewComponent("Ignored").EntryPoint(refKey("leak.B"))
	root := NewComponent("App").
		Install(NewModule("AppModule",
			Provision(refKey("A")),
		).Declares(reached, ignored)).
		EntryPoint(reached.FactoryKey())

	res := Resolve(root)
	require.NoError(t, res.Err(), "the pruned child's unsatisfiable entry point must not surface")
	require.Len(t, res.Plans, 2)

	appPlan := planFor(t, res, "App")
	assert.Equal(t, []string{"Ignored"}, appPlan.PrunedSubcomponents)
	_, bound := res.Graph.Binding(refKey("leak.B"))
	assert.False(t, bound, "nothing from a pruned subcomponent leaks into the graph")
}

func TestChildUsesParentBindings(t *testing.T) {
	db := refKey("app.Database")
	session := refKey("app.Session")
	child := NewComponent("Request").
		Install(NewModule("RequestModule", Provision(session, db))).
		EntryPoint(session)
	root := NewComponent("App").
		Install(NewModule("AppModule", Provision(db))).
		Child(child)

	res := Resolve(root)
	require.NoError(t, res.Err())

	reqPlan := planFor(t, res, "Request")
	assert.True(t, hasStep(reqPlan, session))
	assert.True(t, hasStep(reqPlan, db),
		"an unscoped parent declaration instantiates in the requesting child")
}

func TestNullableSuppressesNilCheck(t *testing.T) {
	metrics := refKey("app.Metrics")
	root := NewComponent("App").
		Install(NewModule("M", Provision(metrics).Nullable())).
		EntryPoint(metrics)

	res := Resolve(root)
	require.NoError(t, res.Err())
	assert.False(t, stepFor(t, planFor(t, res, "App"), metrics).NilCheck)
}

func TestPrimitiveNeverNilChecked(t *testing.T) {
	port := KeyOf(PrimitiveType("int"), "port")
	root := NewComponent("App").
		Install(NewModule("M", Provision(port))).
		EntryPoint(port)

	res := Resolve(root)
	require.NoError(t, res.Err())
	assert.False(t, stepFor(t, planFor(t, res, "App"), port).NilCheck)
}

func TestDetailedErrorIncludesTrace(t *testing.T) {
	root := NewComponent("App").EntryPoint(refKey("app.Ghost"))
	res := Resolve(root)
	err := res.Err()
	require.Error(t, err)
	detailed := DetailedError(err)
	assert.Contains(t, detailed, "app.Ghost cannot be provided")
	assert.Greater(t, len(detailed), len(err.Error()), "capture re-run appends the resolution trace")
	assert.Equal(t, assert.AnError.Error(), DetailedError(assert.AnError),
		"non-graph errors pass through unchanged")
}

func TestResolveAll(t *testing.T) {
	mkRoot := func(name string) *Component {
		k := refKey(name + ".Key")
		return NewComponent(name).
			Install(NewModule(name+"Module", Provision(k))).
			EntryPoint(k)
	}
	broken := NewComponent("Broken").EntryPoint(refKey("nowhere.X"))

	results := ResolveAll(mkRoot("One"), broken, mkRoot("Two"))
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err())
	assert.Error(t, results[1].Err())
	assert.NoError(t, results[2].Err())
	assert.Equal(t, "One", results[0].Component.Name())
	assert.Equal(t, "Two", results[2].Component.Name())
}
