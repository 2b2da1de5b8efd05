package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"addrmatch/internal/domain"
)

func TestNormaliseEnabledStages(t *testing.T) {
	tests := []struct {
		name    string
		enabled []StageName
		want    []StageName
		wantErr string
	}{
		{name: "empty", enabled: nil, want: []StageName{}},
		{name: "trie", enabled: []StageName{StageTrie}, want: []StageName{StageTrie}},
		{
			name:    "unknown stage lists the valid set",
			enabled: []StageName{"levenshtein"},
			wantErr: "available stages: trie",
		},
		{
			name:    "always-on stage rejected",
			enabled: []StageName{StageExactMatches},
			wantErr: "always enabled",
		},
		{
			name:    "duplicate rejected",
			enabled: []StageName{StageTrie, StageTrie},
			wantErr: "duplicate",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normaliseEnabledStages(tc.enabled)
			if tc.wantErr != "" {
				require.Error(t, err)
				var cfgErr *domain.ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStageRegistryEntriesAreComplete(t *testing.T) {
	for name, spec := range stageRegistry {
		assert.Equal(t, name, spec.name)
		assert.NotEmpty(t, spec.description, name)
		assert.NotNil(t, spec.build, name)
		require.NotNil(t, spec.plan, name)
		assert.NotEmpty(t, spec.plan(), name)
	}
}

func TestAvailableStageNamesExcludesAlwaysOn(t *testing.T) {
	for _, name := range AvailableStageNames() {
		assert.False(t, stageRegistry[name].alwaysOn, "stage %s", name)
	}
	assert.Contains(t, AvailableStageNames(), StageTrie)
}

func TestStagePlansNameTheirReasonLiterals(t *testing.T) {
	exact := exactMatchPlan()
	require.NotEmpty(t, exact)
	assert.Equal(t, "canonical_addresses_restricted", exact[0].Name)
	assert.Contains(t, exact[len(exact)-1].Template, domain.ReasonExact.SQLLiteral())

	trie := trieMatchPlan()
	require.NotEmpty(t, trie)
	assert.Contains(t, trie[len(trie)-1].Template, domain.ReasonTrie.SQLLiteral())
}
