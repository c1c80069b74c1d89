package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

func sampleCase() models.CaseAttributes {
	return models.CaseAttributes{
		CaseID:         "case-1",
		OrganizationID: "org-1",
		CaseType:       "Litigation",
		Priority:       "HIGH",
		PracticeArea:   strPtr("Employment"),
		Status:         "OPEN",
		Custom:         map[string]string{"claimValue": "250000", "jurisdiction": "NY", "expedited": "true"},
	}
}

func TestParseConditionsMatching(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		match bool
	}{
		{"empty object", `{}`, true},
		{"null", `null`, true},
		{"string equality ignores case", `{"priority":"high"}`, true},
		{"string mismatch", `{"priority":"LOW"}`, false},
		{"number equality", `{"claimValue":250000}`, true},
		{"list membership", `{"jurisdiction":["CA","NY"]}`, true},
		{"in operator", `{"priority":{"in":["URGENT","HIGH"]}}`, true},
		{"notIn operator", `{"priority":{"notIn":["HIGH"]}}`, false},
		{"threshold", `{"claimValue":{"gte":100000,"lt":500000}}`, true},
		{"threshold miss", `{"claimValue":{"gt":300000}}`, false},
		{"bool generic", `{"expedited":true}`, true},
		{"missing attribute", `{"region":"EMEA"}`, false},
		{"all must hold", `{"priority":"HIGH","jurisdiction":"CA"}`, false},
		{"well-known snake case", `{"practice_area":"employment"}`, true},
	}
	attrs := sampleCase()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conditions, err := ParseConditions([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.match, conditions.Matches(attrs))
		})
	}
}

func TestParseConditionsRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not an object":    `[1,2]`,
		"null predicate":   `{"priority":null}`,
		"empty list":       `{"priority":[]}`,
		"empty operators":  `{"priority":{}}`,
		"unknown operator": `{"claimValue":{"between":[1,2]}}`,
		"non-numeric":      `{"claimValue":{"gt":"big"}}`,
		"nested list":      `{"priority":[["HIGH"]]}`,
		"in not array":     `{"priority":{"in":"HIGH"}}`,
		"broken json":      `{"priority":`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConditions([]byte(raw))
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrRuleEvaluation))
		})
	}
}

func TestParseActions(t *testing.T) {
	actions, err := ParseActions([]byte(`{"workloadWeight":2.5,"roleType":"associate","assignToUserId":" u-1 ","notes":"vip","extra":1}`))
	require.NoError(t, err)
	require.NotNil(t, actions.WorkloadWeight)
	assert.Equal(t, 2.5, *actions.WorkloadWeight)
	assert.Equal(t, "ASSOCIATE", *actions.RoleType)
	assert.Equal(t, "u-1", *actions.AssignToUserID)
	assert.Equal(t, "vip", *actions.Notes)

	empty, err := ParseActions(nil)
	require.NoError(t, err)
	assert.Nil(t, empty.WorkloadWeight)

	for name, raw := range map[string]string{
		"zero weight":   `{"workloadWeight":0}`,
		"string weight": `{"workloadWeight":"2"}`,
		"unknown role":  `{"roleType":"JUDGE"}`,
		"blank target":  `{"assignToUserId":""}`,
		"numeric notes": `{"notes":5}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseActions([]byte(raw))
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrRuleEvaluation))
		})
	}
}
