package a2a

// MessageSendConfiguration tunes how message/send and message/stream behave.
type MessageSendConfiguration struct {
	AcceptedOutputModes    []string                `json:"acceptedOutputModes,omitempty"`
	Blocking               *bool                   `json:"blocking,omitempty"`
	HistoryLength          *int                    `json:"historyLength,omitempty"`
	PushNotificationConfig *PushNotificationConfig `json:"pushNotificationConfig,omitempty"`
}

// MessageSendParams is the request payload of message/send and message/stream.
type MessageSendParams struct {
	Message       *Message                  `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]interface{}    `json:"metadata,omitempty"`
}

// Blocking reports whether the call should block until the task settles.
// Unset means blocking.
func (p *MessageSendParams) Blocking() bool {
	if p.Configuration == nil || p.Configuration.Blocking == nil {
		return true
	}
	return *p.Configuration.Blocking
}

// HistoryLength returns the requested history projection, or nil for all.
func (p *MessageSendParams) HistoryLength() *int {
	if p.Configuration == nil {
		return nil
	}
	return p.Configuration.HistoryLength
}

// TaskQueryParams is the request payload of tasks/get.
type TaskQueryParams struct {
	ID               string                 `json:"id"`
	HistoryLength    *int                   `json:"historyLength,omitempty"`
	IncludeArtifacts *bool                  `json:"includeArtifacts,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// TaskIDParams is the request payload of tasks/cancel, tasks/resubscribe,
// and tasks/pushNotificationConfig/list.
type TaskIDParams struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PushNotificationAuthenticationInfo describes how the push endpoint
// authenticates deliveries.
type PushNotificationAuthenticationInfo struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// PushNotificationConfig is one push-delivery target for a task.
type PushNotificationConfig struct {
	ID             string                              `json:"id,omitempty"`
	URL            string                              `json:"url"`
	Token          string                              `json:"token,omitempty"`
	Authentication *PushNotificationAuthenticationInfo `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig pairs a task id with one push config. It is
// both the payload of tasks/pushNotificationConfig/set and the result of
// the set/get/list methods.
type TaskPushNotificationConfig struct {
	TaskID                 string                 `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// TaskPushNotificationConfigParams is the request payload of
// tasks/pushNotificationConfig/get and /delete. ID is the task id.
type TaskPushNotificationConfigParams struct {
	ID                       string                 `json:"id"`
	PushNotificationConfigID string                 `json:"pushNotificationConfigId,omitempty"`
	Metadata                 map[string]interface{} `json:"metadata,omitempty"`
}
