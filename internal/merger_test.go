package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

func TestMergerFoldsParametersWithDeepCopy(t *testing.T) {
	rig := newEngineRig(t)
	rig.registerProfileGraph(t)

	copy := &profileSettings{Theme: "dark", PageSize: 99, Labels: []string{"edited"}}
	into := defaultProfile()

	result, err := rig.merger.MergeCopy(copy, into, true)
	require.NoError(t, err)
	require.Same(t, into, result)

	assert.Equal(t, "dark", into.Theme)
	assert.Equal(t, 99, into.PageSize)
	assert.Equal(t, []string{"edited"}, into.Labels)

	copy.Labels[0] = "mutated"
	assert.Equal(t, "edited", into.Labels[0], "merge must not share slice backing arrays")
}

func TestMergerRejectsClassMismatch(t *testing.T) {
	rig := newEngineRig(t)
	rig.registerProfileGraph(t)

	_, err := rig.merger.MergeCopy(defaultNotifier(), defaultProfile(), true)
	require.Error(t, err)
	assert.True(t, norma.IsSchemaMismatchError(err))
}

func TestMergerSkipsUntouchedCopyBranches(t *testing.T) {
	rig := newEngineRig(t)
	rig.registerProfileGraph(t)

	copy := &profileSettings{Theme: "dark"}
	into := defaultProfile()
	into.Notifier.Set(&notifierSettings{Webhook: "https://live.example.com", Retries: 2})

	_, err := rig.merger.MergeCopy(copy, into, true)
	require.NoError(t, err)

	require.True(t, into.Notifier.Materialized())
	assert.Equal(t, "https://live.example.com", into.Notifier.Get().Webhook,
		"unmaterialized copy branch carries no edits")
	assert.False(t, copy.Notifier.Materialized(), "merge must not materialize copy branches")
}

func TestMergerMaterializesMissingTargetBranch(t *testing.T) {
	rig := newEngineRig(t)
	rig.registerProfileGraph(t)

	copy := defaultProfile()
	copy.Notifier.Set(&notifierSettings{Webhook: "https://edited.example.com", Retries: 8})
	into := defaultProfile()

	_, err := rig.merger.MergeCopy(copy, into, true)
	require.NoError(t, err)

	branch := into.Notifier.Get()
	require.NotNil(t, branch)
	assert.Equal(t, "https://edited.example.com", branch.Webhook)
	assert.Equal(t, 8, branch.Retries)
	assert.NotSame(t, copy.Notifier.Get(), branch)
}

func TestMergerShallowSkipsEmbeds(t *testing.T) {
	rig := newEngineRig(t)
	rig.registerProfileGraph(t)

	copy := defaultProfile()
	copy.Notifier.Set(&notifierSettings{Webhook: "https://edited.example.com"})
	into := defaultProfile()

	_, err := rig.merger.MergeCopy(copy, into, false)
	require.NoError(t, err)
	assert.True(t, into.Notifier.IsEmpty())
}

func TestMergerMergesEachClassOnce(t *testing.T) {
	rig := newEngineRig(t)
	rig.registerWorkspaceGraph(t)

	copy := defaultWorkspace()
	copy.Primary.Set(&profileSettings{Theme: "first"})
	copy.Fallback.Set(&profileSettings{Theme: "second"})
	into := defaultWorkspace()

	_, err := rig.merger.MergeCopy(copy, into, true)
	require.NoError(t, err)

	require.NotNil(t, into.Primary.Get())
	assert.Equal(t, "first", into.Primary.Get().Theme)
	assert.True(t, into.Fallback.IsEmpty(),
		"a class already merged through another branch is not merged again")
}

func TestMergerIsIdempotent(t *testing.T) {
	rig := newEngineRig(t)
	rig.registerProfileGraph(t)

	copy := &profileSettings{Theme: "dark", PageSize: 10, Labels: []string{"a"}}
	into := defaultProfile()

	_, err := rig.merger.MergeCopy(copy, into, true)
	require.NoError(t, err)
	first := *into

	_, err = rig.merger.MergeCopy(copy, into, true)
	require.NoError(t, err)
	assert.Equal(t, first.Theme, into.Theme)
	assert.Equal(t, first.PageSize, into.PageSize)
	assert.Equal(t, first.Labels, into.Labels)
}

func TestMergerRunsAfterMergeHook(t *testing.T) {
	rig := newEngineRig(t)
	rig.register(t, &auditedSettings{Count: 1}, norma.ClassDeclaration{Name: "audited_settings"})

	into := &auditedSettings{Count: 1}
	_, err := rig.merger.MergeCopy(&auditedSettings{Count: 4}, into, true)
	require.NoError(t, err)
	assert.Equal(t, 4, into.Count)
	assert.Equal(t, 1, into.mergeCalls)
}
