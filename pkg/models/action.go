package models

import (
	"encoding/json"
	"fmt"
)

// ActionType is the tag of the action variant.
type ActionType string

const (
	ActionSendDirectMessage     ActionType = "sendDirectMessage"
	ActionLikePost              ActionType = "likePost"
	ActionFollowUser            ActionType = "followUser"
	ActionUnfollowUser          ActionType = "unfollowUser"
	ActionComment               ActionType = "comment"
	ActionMonitorMessages       ActionType = "monitorMessages"
	ActionMonitorPosts          ActionType = "monitorPosts"
	ActionDelay                 ActionType = "delay"
	ActionUploadPhoto           ActionType = "uploadPhoto"
	ActionStartMessageProcessor ActionType = "startMessageProcessor"
	ActionStopMessageProcessor  ActionType = "stopMessageProcessor"
	ActionIf                    ActionType = "if"
	ActionForEach               ActionType = "forEach"
)

// ActionTypes lists every known action type in catalog order.
var ActionTypes = []ActionType{
	ActionSendDirectMessage,
	ActionLikePost,
	ActionFollowUser,
	ActionUnfollowUser,
	ActionComment,
	ActionMonitorMessages,
	ActionMonitorPosts,
	ActionDelay,
	ActionUploadPhoto,
	ActionStartMessageProcessor,
	ActionStopMessageProcessor,
	ActionIf,
	ActionForEach,
}

// Action is a single typed operation inside a step.
type Action struct {
	Type        ActionType   `json:"type"`
	Params      ActionParams `json:"params"`
	Description string       `json:"description,omitempty"`
}

// ActionParams is implemented only by the parameter records in this package.
type ActionParams interface {
	ActionType() ActionType
	sealed()
}

type SendDirectMessageParams struct {
	User    string `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

type LikePostParams struct {
	PostID string `json:"postId,omitempty"`
}

type FollowUserParams struct {
	User string `json:"user,omitempty"`
}

type UnfollowUserParams struct {
	User string `json:"user,omitempty"`
}

type CommentParams struct {
	PostID string `json:"postId,omitempty"`
	Text   string `json:"text,omitempty"`
}

// MonitorMessagesParams watches the inbox. Duration is in seconds and may be a number or a reference.
type MonitorMessagesParams struct {
	Duration any    `json:"duration,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
}

type MonitorPostsParams struct {
	Username string `json:"username,omitempty"`
	Limit    any    `json:"limit,omitempty"`
}

// DelayParams pauses the run. Seconds may be a number or a reference.
type DelayParams struct {
	Seconds any `json:"seconds,omitempty"`
}

type UploadPhotoParams struct {
	ImageURL string `json:"imageUrl,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type StartMessageProcessorParams struct {
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model,omitempty"`
}

type StopMessageProcessorParams struct{}

// IfParams compares a resolved variable with a value. Branching lives on the owning step's edges.
type IfParams struct {
	Variable string `json:"variable,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    string `json:"value,omitempty"`
}

// ForEachParams iterates List sequentially, running Actions once per item.
type ForEachParams struct {
	List    string    `json:"list,omitempty"`
	Actions []*Action `json:"actions"`
}

type forEachJSON ForEachParams

// UnmarshalJSON rejects null entries in the loop body.
func (p *ForEachParams) UnmarshalJSON(data []byte) error {
	var raw forEachJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := checkActions("actions", raw.Actions); err != nil {
		return err
	}

	*p = ForEachParams(raw)

	return nil
}

func (*SendDirectMessageParams) ActionType() ActionType     { return ActionSendDirectMessage }
func (*LikePostParams) ActionType() ActionType              { return ActionLikePost }
func (*FollowUserParams) ActionType() ActionType            { return ActionFollowUser }
func (*UnfollowUserParams) ActionType() ActionType          { return ActionUnfollowUser }
func (*CommentParams) ActionType() ActionType               { return ActionComment }
func (*MonitorMessagesParams) ActionType() ActionType       { return ActionMonitorMessages }
func (*MonitorPostsParams) ActionType() ActionType          { return ActionMonitorPosts }
func (*DelayParams) ActionType() ActionType                 { return ActionDelay }
func (*UploadPhotoParams) ActionType() ActionType           { return ActionUploadPhoto }
func (*StartMessageProcessorParams) ActionType() ActionType { return ActionStartMessageProcessor }
func (*StopMessageProcessorParams) ActionType() ActionType  { return ActionStopMessageProcessor }
func (*IfParams) ActionType() ActionType                    { return ActionIf }
func (*ForEachParams) ActionType() ActionType               { return ActionForEach }

func (*SendDirectMessageParams) sealed()     {}
func (*LikePostParams) sealed()              {}
func (*FollowUserParams) sealed()            {}
func (*UnfollowUserParams) sealed()          {}
func (*CommentParams) sealed()               {}
func (*MonitorMessagesParams) sealed()       {}
func (*MonitorPostsParams) sealed()          {}
func (*DelayParams) sealed()                 {}
func (*UploadPhotoParams) sealed()           {}
func (*StartMessageProcessorParams) sealed() {}
func (*StopMessageProcessorParams) sealed()  {}
func (*IfParams) sealed()                    {}
func (*ForEachParams) sealed()               {}

// NewActionParams returns an empty parameter record for the given type.
func NewActionParams(actionType ActionType) (ActionParams, error) {
	switch actionType {
	case ActionSendDirectMessage:
		return &SendDirectMessageParams{}, nil
	case ActionLikePost:
		return &LikePostParams{}, nil
	case ActionFollowUser:
		return &FollowUserParams{}, nil
	case ActionUnfollowUser:
		return &UnfollowUserParams{}, nil
	case ActionComment:
		return &CommentParams{}, nil
	case ActionMonitorMessages:
		return &MonitorMessagesParams{}, nil
	case ActionMonitorPosts:
		return &MonitorPostsParams{}, nil
	case ActionDelay:
		return &DelayParams{}, nil
	case ActionUploadPhoto:
		return &UploadPhotoParams{}, nil
	case ActionStartMessageProcessor:
		return &StartMessageProcessorParams{}, nil
	case ActionStopMessageProcessor:
		return &StopMessageProcessorParams{}, nil
	case ActionIf:
		return &IfParams{}, nil
	case ActionForEach:
		return &ForEachParams{Actions: make([]*Action, 0)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, actionType)
	}
}

// NewAction builds an action of the given type with empty parameters.
func NewAction(actionType ActionType) (*Action, error) {
	params, err := NewActionParams(actionType)
	if err != nil {
		return nil, err
	}

	return &Action{Type: actionType, Params: params}, nil
}

type actionJSON struct {
	Type        ActionType      `json:"type"`
	Params      json.RawMessage `json:"params,omitempty"`
	Description string          `json:"description,omitempty"`
}

// UnmarshalJSON decodes params into the record matching the type tag.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	params, err := NewActionParams(raw.Type)
	if err != nil {
		return err
	}

	if len(raw.Params) > 0 && string(raw.Params) != "null" {
		if err := json.Unmarshal(raw.Params, params); err != nil {
			return fmt.Errorf("decoding %s params: %w", raw.Type, err)
		}
	}

	a.Type = raw.Type
	a.Params = params
	a.Description = raw.Description

	return nil
}

// MarshalJSON always writes a params object, even when the record is empty.
func (a Action) MarshalJSON() ([]byte, error) {
	params := a.Params
	if params == nil {
		var err error

		params, err = NewActionParams(a.Type)
		if err != nil {
			return nil, err
		}
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	return json.Marshal(actionJSON{
		Type:        a.Type,
		Params:      encoded,
		Description: a.Description,
	})
}

// ParamsMap returns the params as a generic JSON object.
func (a *Action) ParamsMap() (map[string]any, error) {
	fields := make(map[string]any)

	if a == nil || a.Params == nil {
		return fields, nil
	}

	encoded, err := json.Marshal(a.Params)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, err
	}

	return fields, nil
}

// Clone returns a deep copy of the action, nested forEach bodies included.
func (a *Action) Clone() (*Action, error) {
	encoded, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}

	var clone Action
	if err := json.Unmarshal(encoded, &clone); err != nil {
		return nil, err
	}

	return &clone, nil
}
