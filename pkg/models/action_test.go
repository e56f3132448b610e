package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_UnmarshalJSON_DecodesVariant(t *testing.T) {
	data := `{
		"type": "forEach",
		"params": {
			"list": "{{steps.step-1.result.posts}}",
			"actions": [
				{"type": "likePost", "params": {"postId": "{{item.id}}"}},
				{"type": "delay", "params": {"seconds": 2}}
			]
		},
		"description": "like every post"
	}`

	var action Action
	require.NoError(t, json.Unmarshal([]byte(data), &action))

	assert.Equal(t, ActionForEach, action.Type)
	assert.Equal(t, "like every post", action.Description)

	params, ok := action.Params.(*ForEachParams)
	require.True(t, ok)
	assert.Equal(t, "{{steps.step-1.result.posts}}", params.List)
	require.Len(t, params.Actions, 2)

	like, ok := params.Actions[0].Params.(*LikePostParams)
	require.True(t, ok)
	assert.Equal(t, "{{item.id}}", like.PostID)

	delay, ok := params.Actions[1].Params.(*DelayParams)
	require.True(t, ok)
	assert.InDelta(t, 2.0, delay.Seconds, 0)
}

func TestAction_UnmarshalJSON_UnknownType(t *testing.T) {
	var action Action
	err := json.Unmarshal([]byte(`{"type":"teleport","params":{}}`), &action)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownActionType)
}

func TestAction_UnmarshalJSON_MissingParams(t *testing.T) {
	var action Action
	require.NoError(t, json.Unmarshal([]byte(`{"type":"stopMessageProcessor"}`), &action))

	assert.IsType(t, &StopMessageProcessorParams{}, action.Params)
}

func TestAction_MarshalJSON_AlwaysWritesParams(t *testing.T) {
	encoded, err := json.Marshal(&Action{Type: ActionStopMessageProcessor})
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"stopMessageProcessor","params":{}}`, string(encoded))
}

func TestAction_Clone_IsIndependent(t *testing.T) {
	original := &Action{
		Type: ActionForEach,
		Params: &ForEachParams{
			List:    "{{steps.a.result.users}}",
			Actions: []*Action{{Type: ActionFollowUser, Params: &FollowUserParams{User: "{{item}}"}}},
		},
	}

	clone, err := original.Clone()
	require.NoError(t, err)

	clone.Params.(*ForEachParams).Actions[0].Params.(*FollowUserParams).User = "someone"

	assert.Equal(t, "{{item}}", original.Params.(*ForEachParams).Actions[0].Params.(*FollowUserParams).User)
}

func TestAction_ParamsMap(t *testing.T) {
	action := &Action{Type: ActionComment, Params: &CommentParams{PostID: "p1", Text: "nice"}}

	fields, err := action.ParamsMap()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"postId": "p1", "text": "nice"}, fields)
}

func TestNewActionParams_EveryTypeMatchesItsTag(t *testing.T) {
	for _, actionType := range ActionTypes {
		t.Run(string(actionType), func(t *testing.T) {
			params, err := NewActionParams(actionType)
			require.NoError(t, err)
			assert.Equal(t, actionType, params.ActionType())
		})
	}
}
