// types/types.go
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 单个选项 key: 'value'
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OptionMap 保持插入顺序的字符串映射，重复 key 原地覆盖
type OptionMap []Option

func (m OptionMap) Get(key string) (string, bool) {
	for _, o := range m {
		if o.Key == key {
			return o.Value, true
		}
	}
	return "", false
}

func (m *OptionMap) Set(key, value string) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, Option{Key: key, Value: value})
}

func (m OptionMap) Len() int { return len(m) }

func (m OptionMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, o := range m {
		keys = append(keys, o.Key)
	}
	return keys
}

// Map 返回无序副本
func (m OptionMap) Map() map[string]string {
	out := make(map[string]string, len(m))
	for _, o := range m {
		out[o.Key] = o.Value
	}
	return out
}

func (m OptionMap) Clone() OptionMap {
	if m == nil {
		return nil
	}
	out := make(OptionMap, len(m))
	copy(out, m)
	return out
}

// MarshalJSON 按插入顺序输出 JSON 对象
func (m OptionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, o := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(o.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *OptionMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("options: expected JSON object")
	}

	out := OptionMap{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("options: value of %q: %w", kt, err)
		}
		out.Set(kt.(string), value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// 一个 DSL 块的解析结果，创建后不再修改
type Item struct {
	Type    string    `json:"type"`
	Options OptionMap `json:"options"`
}

// 条目处理状态
type ItemStatus int

const (
	StatusPending ItemStatus = iota
	StatusSuccess
	StatusFailed
	StatusSkipped
)

func (s ItemStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// 单个条目的分发结果
type Result struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Seq        int           `json:"seq"`
	Type       string        `json:"type"`
	Options    OptionMap     `json:"options"`
	Status     ItemStatus    `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// 序列化结果
func (r *Result) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

// 反序列化结果
func DeserializeResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// 一次 Process 调用的汇总
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

func (r *Report) Count(status ItemStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Err 合并所有失败条目的错误，全部成功时为 nil
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("item %d (%s): %s", res.Seq, res.Type, res.Error))
	}
	return errors.Join(errs...)
}
