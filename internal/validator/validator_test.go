package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fluentz/placement-backend/internal/model"
)

func init() {
	Setup()
}

func TestValidate_UsesJSONNames(t *testing.T) {
	fields := Validate(&model.AnswerRequest{StateToken: "x"})
	assert.Contains(t, fields, "answer_key")
	assert.NotContains(t, fields, "state_token")
	assert.Contains(t, fields["answer_key"], "required")
}

func TestValidate_OK(t *testing.T) {
	assert.Nil(t, Validate(&model.StartAssessmentRequest{TopicID: 4}))
}

func TestValidate_ChoiceIsFreeForm(t *testing.T) {
	assert.Nil(t, Validate(&model.AnswerRequest{StateToken: "s", AnswerKey: "k", Choice: "zz"}))
}
