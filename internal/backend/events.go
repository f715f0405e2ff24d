package backend

import "encoding/json"

// EventType 规范化事件类型，所有后端家族统一映射到该模型
type EventType string

const (
	EventAssistantText EventType = "assistant_text"
	EventCodeText      EventType = "code_text"
	EventToolUse       EventType = "tool_use"
	EventMetadata      EventType = "metadata"
	EventInvalidState  EventType = "invalid_state"
	EventUnknown       EventType = "unknown"
)

// Event 带类型标签的规范化事件，按 Type 取对应字段
type Event struct {
	Type     EventType
	Text     string
	ToolUse  *ToolUseEvent
	Metadata *MetadataEvent
	Invalid  *InvalidStateEvent
}

// ToolUseEvent 工具调用事件。Input 为本次携带的增量参数片段，
// 调用方按到达顺序拼接得到完整参数；Stop 表示该调用的最后一个事件
type ToolUseEvent struct {
	ID    string
	Name  string
	Input *string
	Stop  bool
}

type MetadataEvent struct {
	ConversationID string
	UtteranceID    string
}

// InvalidStateEvent 后端判定调用方输入不可接受（如上下文超限），
// 观察到该事件后流即终止，本次交互按失败处理
type InvalidStateEvent struct {
	Reason  string
	Message string
}

func AssistantText(text string) Event {
	return Event{Type: EventAssistantText, Text: text}
}

func CodeText(text string) Event {
	return Event{Type: EventCodeText, Text: text}
}

func NewToolUse(id, name string, input *string, stop bool) Event {
	return Event{Type: EventToolUse, ToolUse: &ToolUseEvent{ID: id, Name: name, Input: input, Stop: stop}}
}

func NewMetadata(conversationID, utteranceID string) Event {
	return Event{Type: EventMetadata, Metadata: &MetadataEvent{ConversationID: conversationID, UtteranceID: utteranceID}}
}

func InvalidState(reason, message string) Event {
	return Event{Type: EventInvalidState, Invalid: &InvalidStateEvent{Reason: reason, Message: message}}
}

func Unknown() Event {
	return Event{Type: EventUnknown}
}

// IsText 文本类事件（普通文本与代码文本）
func (e Event) IsText() bool {
	return e.Type == EventAssistantText || e.Type == EventCodeText
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationRequest 一次交互的规范化请求，交给会话后不再修改
type ConversationRequest struct {
	ConversationID string
	UserMessage    UserMessage
	History        []Message
}

// UserMessage 当前用户回合
type UserMessage struct {
	Content     string
	ToolResults []ToolResult
	ToolSpecs   []ToolSpec
}

// Message 历史回合，Role 取 RoleUser 或 RoleAssistant
type Message struct {
	Role        string
	Content     string
	ToolResults []ToolResult // 仅用户回合
	ToolUses    []ToolUse    // 仅助手回合
}

const (
	ToolResultStatusSuccess = "success"
	ToolResultStatusError   = "error"
)

// ToolResult 此前工具调用的输出
type ToolResult struct {
	ToolUseID string
	Status    string
	Content   []ToolResultBlock
}

// ToolResultBlock 文本或结构化数据二选一
type ToolResultBlock struct {
	Text string
	JSON json.RawMessage
}

// ToolSpec 本回合提供给模型的工具定义
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolUse 助手历史回合中已发出的工具调用
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}
