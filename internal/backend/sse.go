package backend

import (
	"bytes"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// SSEDecoder 增量解析 text/event-stream 字节流为规范化事件。
// 只解析完整行，跨 Feed 调用的半行先缓冲再拼装；每次交互一个实例，用完即弃
type SSEDecoder struct {
	buf   []byte
	calls toolCallTracker
	done  bool
}

func NewSSEDecoder() *SSEDecoder {
	return &SSEDecoder{}
}

// Feed 追加一段字节并返回由此解出的事件，可能为空
func (d *SSEDecoder) Feed(p []byte) []Event {
	if d.done {
		return nil
	}

	d.buf = append(d.buf, p...)

	var events []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]

		events = append(events, d.decodeLine(line)...)
		if d.done {
			// [DONE] 之后不再处理任何帧
			d.buf = nil
			break
		}
	}
	return events
}

// Finish 冲刷缓冲中完整但缺少行终止符的尾部帧，不伪造任何事件
func (d *SSEDecoder) Finish() []Event {
	if d.done || len(d.buf) == 0 {
		return nil
	}
	line := string(d.buf)
	d.buf = nil
	return d.decodeLine(line)
}

func (d *SSEDecoder) decodeLine(raw string) []Event {
	line := strings.TrimSpace(raw)
	if !strings.HasPrefix(line, "data: ") {
		return nil
	}

	payload := line[len("data: "):]
	if payload == "[DONE]" {
		d.done = true
		return nil
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		// 单帧损坏不致命，跳过继续
		return nil
	}
	if len(chunk.Choices) == 0 {
		return nil
	}

	// 只看第一个 choice
	choice := chunk.Choices[0]

	var events []Event
	if choice.Delta.Content != "" {
		events = append(events, AssistantText(choice.Delta.Content))
	}
	for _, tc := range choice.Delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		events = append(events, d.calls.observe(idx, tc.ID, tc.Function.Name, tc.Function.Arguments)...)
	}
	if choice.FinishReason == openai.FinishReasonToolCalls {
		events = append(events, d.calls.finishAll()...)
	}

	if len(events) == 0 && choice.Delta.Role == "" && choice.FinishReason == "" {
		// 语法合法但语义未知的帧
		return []Event{Unknown()}
	}
	return events
}

// toolCallTracker 按槽位序号累积分片送达的工具调用。
// 仅在一次交互内存续；最终事件按槽位首次出现的顺序发出，保证可测的确定性
type toolCallTracker struct {
	states map[int]*toolCallState
	order  []int
}

type toolCallState struct {
	id   string
	name string
	args string
}

func (t *toolCallTracker) observe(idx int, id, name, args string) []Event {
	if t.states == nil {
		t.states = make(map[int]*toolCallState)
	}
	state, ok := t.states[idx]
	if !ok {
		state = &toolCallState{}
		t.states[idx] = state
		t.order = append(t.order, idx)
	}

	if id != "" && state.id == "" {
		state.id = id
	}

	var events []Event
	if name != "" {
		// 名称一旦可知立即对外宣告，参数可以尚未到达
		state.name = name
		events = append(events, NewToolUse(state.id, name, nil, false))
	}
	if args != "" {
		state.args += args
		fragment := args
		events = append(events, NewToolUse(state.id, state.name, &fragment, false))
	}
	return events
}

func (t *toolCallTracker) finishAll() []Event {
	events := make([]Event, 0, len(t.order))
	for _, idx := range t.order {
		state := t.states[idx]
		events = append(events, NewToolUse(state.id, state.name, nil, true))
	}
	return events
}
