package storage

import "sync"

// subscriberBuffer — ёмкость канала подписчика. Медленный подписчик
// теряет события, а не блокирует издателя.
const subscriberBuffer = 16

// subscriber — канал подписчика с необязательным фильтром коллекций.
// Пустой фильтр пропускает все события.
type subscriber struct {
	ch     chan Event
	filter map[string]struct{}
}

// notifier размножает события изменения по подписчикам процесса.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscriber
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]subscriber)}
}

// Subscribe регистрирует подписчика на перечисленные коллекции, без
// аргументов — на все. Возвращённая функция снимает подписку и закрывает
// канал, её можно вызывать повторно.
func (n *notifier) Subscribe(collections ...string) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if n.closed {
		close(ch)
		return ch, func() {}
	}

	var filter map[string]struct{}
	if len(collections) > 0 {
		filter = make(map[string]struct{}, len(collections))
		for _, c := range collections {
			filter[c] = struct{}{}
		}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = subscriber{ch: ch, filter: filter}

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Publish рассылает событие без блокировки: переполненные подписчики
// пропускают событие.
func (n *notifier) Publish(ev Event) {
	changeEvents.WithLabelValues(ev.Collection).Inc()

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		if sub.filter != nil {
			if _, ok := sub.filter[ev.Collection]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close закрывает все каналы подписчиков.
func (n *notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, sub := range n.subs {
		delete(n.subs, id)
		close(sub.ch)
	}
}
