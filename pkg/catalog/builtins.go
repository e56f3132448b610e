package catalog

import "github.com/dukex/socialflow/pkg/models"

var successResult = ResultField{Path: "success", Shape: ClassUnknown}

func registerBuiltins(c *Catalog) {
	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionSendDirectMessage,
			Label:       "Send Direct Message",
			Description: "Send a private message to a user",
			ExpectedFields: []FieldSpec{
				{Name: "user", Label: "User", Kind: KindString, Required: true, Shape: ShapeUser},
				{Name: "message", Label: "Message", Kind: KindString, Required: true},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult, {Path: "messageId", Shape: ClassUnknown}},
		},
		Defaults: func() models.ActionParams { return &models.SendDirectMessageParams{} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionLikePost,
			Label:       "Like Post",
			Description: "Like a post",
			ExpectedFields: []FieldSpec{
				{Name: "postId", Label: "Post", Kind: KindString, Required: true, Shape: ShapePost},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult},
		},
		Defaults: func() models.ActionParams { return &models.LikePostParams{} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionFollowUser,
			Label:       "Follow User",
			Description: "Follow a user",
			ExpectedFields: []FieldSpec{
				{Name: "user", Label: "User", Kind: KindString, Required: true, Shape: ShapeUser},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult},
		},
		Defaults: func() models.ActionParams { return &models.FollowUserParams{} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionUnfollowUser,
			Label:       "Unfollow User",
			Description: "Stop following a user",
			ExpectedFields: []FieldSpec{
				{Name: "user", Label: "User", Kind: KindString, Required: true, Shape: ShapeUser},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult},
		},
		Defaults: func() models.ActionParams { return &models.UnfollowUserParams{} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionComment,
			Label:       "Comment",
			Description: "Comment on a post",
			ExpectedFields: []FieldSpec{
				{Name: "postId", Label: "Post", Kind: KindString, Required: true, Shape: ShapePost},
				{Name: "text", Label: "Text", Kind: KindString, Required: true},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult, {Path: "commentId", Shape: ClassUnknown}},
		},
		Defaults: func() models.ActionParams { return &models.CommentParams{} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionMonitorMessages,
			Label:       "Monitor Messages",
			Description: "Watch the inbox and collect the users who wrote",
			ExpectedFields: []FieldSpec{
				{Name: "duration", Label: "Duration (seconds)", Kind: KindNumber, Required: true},
				{Name: "keyword", Label: "Keyword", Kind: KindString},
			},
			ProducesResultShape: ClassUsers,
			Results: []ResultField{
				{Path: "users", Shape: ClassUsers, List: true},
				{Path: "count", Shape: ClassUnknown},
			},
		},
		Defaults: func() models.ActionParams { return &models.MonitorMessagesParams{Duration: 60.0} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionMonitorPosts,
			Label:       "Monitor Posts",
			Description: "Collect the latest posts of a user",
			ExpectedFields: []FieldSpec{
				{Name: "username", Label: "Username", Kind: KindString, Required: true, Shape: ShapeUser},
				{Name: "limit", Label: "Limit", Kind: KindNumber},
			},
			ProducesResultShape: ClassPosts,
			Results: []ResultField{
				{Path: "posts", Shape: ClassPosts, List: true},
				{Path: "count", Shape: ClassUnknown},
			},
		},
		Defaults: func() models.ActionParams { return &models.MonitorPostsParams{Limit: 10.0} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionDelay,
			Label:       "Delay",
			Description: "Wait before the next action",
			ExpectedFields: []FieldSpec{
				{Name: "seconds", Label: "Seconds", Kind: KindNumber, Required: true},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult},
		},
		Defaults: func() models.ActionParams { return &models.DelayParams{Seconds: 5.0} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionUploadPhoto,
			Label:       "Upload Photo",
			Description: "Publish a photo with an optional caption",
			ExpectedFields: []FieldSpec{
				{Name: "imageUrl", Label: "Image URL", Kind: KindString, Required: true},
				{Name: "caption", Label: "Caption", Kind: KindString},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult, {Path: "postId", Shape: ClassUnknown}},
		},
		Defaults: func() models.ActionParams { return &models.UploadPhotoParams{} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionStartMessageProcessor,
			Label:       "Start Message Processor",
			Description: "Answer incoming messages automatically",
			ExpectedFields: []FieldSpec{
				{Name: "prompt", Label: "Prompt", Kind: KindString, Required: true},
				{Name: "model", Label: "Model", Kind: KindString},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult, {Path: "processorId", Shape: ClassUnknown}},
		},
		Defaults: func() models.ActionParams { return &models.StartMessageProcessorParams{} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:                models.ActionStopMessageProcessor,
			Label:               "Stop Message Processor",
			Description:         "Stop answering incoming messages",
			ExpectedFields:      []FieldSpec{},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{successResult},
		},
		Defaults: func() models.ActionParams { return &models.StopMessageProcessorParams{} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionIf,
			Label:       "If",
			Description: "Branch on a condition; follow the step's onTrue or onFalse edge",
			ExpectedFields: []FieldSpec{
				{Name: "variable", Label: "Variable", Kind: KindString, Required: true},
				{Name: "operator", Label: "Operator", Kind: KindString, Required: true, Enum: Operators},
				{Name: "value", Label: "Value", Kind: KindString},
			},
			ProducesResultShape: ClassUnknown,
			Results:             []ResultField{{Path: "condition", Shape: ClassUnknown}},
		},
		Defaults: func() models.ActionParams { return &models.IfParams{Operator: "equals"} },
	})

	c.Register(Entry{
		Descriptor: Descriptor{
			Type:        models.ActionForEach,
			Label:       "For Each",
			Description: "Run the nested actions once per list item",
			ExpectedFields: []FieldSpec{
				{Name: "list", Label: "List", Kind: KindString, Required: true},
				{Name: "actions", Label: "Actions", Kind: KindActions},
			},
			ProducesResultShape: ClassUnknown,
			Results: []ResultField{
				{Path: "iterations", Shape: ClassUnknown},
				{Path: "results", Shape: ClassUnknown, List: true},
			},
		},
		Defaults: func() models.ActionParams {
			return &models.ForEachParams{Actions: make([]*models.Action, 0)}
		},
	})
}

// Operators are the comparison operators an if action accepts.
var Operators = []string{"equals", "notEquals", "isEmpty", "isNotEmpty", "greaterThan", "lessThan", "contains"}
