package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_LegalWalk(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, PhaseFeature, m.Current())

	steps := []struct {
		kw   Keyword
		want Phase
	}{
		{KeywordRule, PhaseRule},
		{KeywordRule, PhaseRule},
		{KeywordScenario, PhaseScenario},
		{KeywordGiven, PhaseGiven},
		{KeywordAnd, PhaseGiven},
		{KeywordWhen, PhaseWhen},
		{KeywordAnd, PhaseWhen},
		{KeywordThen, PhaseThen},
		{KeywordAnd, PhaseThen},
	}

	for _, s := range steps {
		got, err := m.Enter(s.kw)
		require.NoError(t, err, "enter %s", s.kw)
		assert.Equal(t, s.want, got)
	}
}

func TestMachine_GivenToThen(t *testing.T) {
	m := NewMachine()
	_, err := m.Enter(KeywordScenario)
	require.NoError(t, err)
	_, err = m.Enter(KeywordGiven)
	require.NoError(t, err)

	got, err := m.Enter(KeywordThen)
	require.NoError(t, err)
	assert.Equal(t, PhaseThen, got)
}

func TestMachine_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		walk []Keyword
		kw   Keyword
	}{
		{"when from feature", nil, KeywordWhen},
		{"then from feature", nil, KeywordThen},
		{"given from feature", nil, KeywordGiven},
		{"and from feature", nil, KeywordAnd},
		{"and from scenario", []Keyword{KeywordScenario}, KeywordAnd},
		{"scenario from given", []Keyword{KeywordScenario, KeywordGiven}, KeywordScenario},
		{"given after when", []Keyword{KeywordScenario, KeywordGiven, KeywordWhen}, KeywordGiven},
		{"when after then", []Keyword{KeywordScenario, KeywordGiven, KeywordThen}, KeywordWhen},
		{"rule after scenario", []Keyword{KeywordScenario}, KeywordRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			for _, kw := range tt.walk {
				_, err := m.Enter(kw)
				require.NoError(t, err)
			}
			before := m.Current()
			_, err := m.Enter(tt.kw)
			require.Error(t, err)
			assert.True(t, IsParseError(err, ErrCodeInvalidTransition))
			assert.Equal(t, before, m.Current(), "failed transition must not move the machine")
		})
	}
}

func TestMachine_InvalidTransitionMessage(t *testing.T) {
	m := NewMachine()
	_, err := m.Enter(KeywordWhen)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid transition from feature")
}

func TestParseKeyword(t *testing.T) {
	kw, ok := ParseKeyword("given")
	assert.True(t, ok)
	assert.Equal(t, KeywordGiven, kw)

	_, ok = ParseKeyword("unless")
	assert.False(t, ok)
}

func TestStatementPhase(t *testing.T) {
	assert.True(t, StatementPhase(PhaseGiven))
	assert.True(t, StatementPhase(PhaseWhen))
	assert.True(t, StatementPhase(PhaseThen))
	assert.False(t, StatementPhase(PhaseFeature))
	assert.False(t, StatementPhase(PhaseScenario))
	assert.False(t, StatementPhase(PhaseRule))
}
