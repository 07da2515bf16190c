package audit

import (
	"encoding/json"
	"log"
	"sort"
	"time"
)

// Event — всё, что нужно аудит-подсистеме об изменении записи.
// Персистентность аудита — внешняя забота; ядро только эмитит.
type Event struct {
	Actor    string    `json:"actor,omitempty"`
	Role     string    `json:"role"`
	Entity   string    `json:"entity"`
	RecordID string    `json:"record_id"`
	Action   string    `json:"action"` // create/update/delete
	Fields   []string  `json:"fields,omitempty"`
	At       time.Time `json:"at"`
}

type Emitter interface {
	Emit(ev Event)
}

// LogEmitter пишет события в журнал процесса. Дефолт, пока не подключён
// внешний приёмник.
type LogEmitter struct{}

func (LogEmitter) Emit(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("audit: %s %s/%s by %s", ev.Action, ev.Entity, ev.RecordID, ev.Role)
		return
	}
	log.Printf("audit: %s", b)
}

// FieldNames — отсортированные имена полей payload'а для события.
func FieldNames(payload map[string]any) []string {
	out := make([]string, 0, len(payload))
	for k := range payload {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
