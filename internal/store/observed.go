package store

import (
	"context"
	"time"
)

// Observer receives the outcome of every store call.
type Observer interface {
	StoreDone(op string, since time.Time, err error)
}

type observed struct {
	Store
	obs Observer
}

// Observe wraps s so that each call is reported to obs.
func Observe(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &observed{Store: s, obs: obs}
}

func (o *observed) Append(ctx context.Context, msg *Message) (id string, err error) {
	defer o.done("append", time.Now(), &err)
	return o.Store.Append(ctx, msg)
}

func (o *observed) Query(ctx context.Context, filter Filter) (msgs []Message, err error) {
	defer o.done("query", time.Now(), &err)
	return o.Store.Query(ctx, filter)
}

func (o *observed) Get(ctx context.Context, id string) (msg *Message, err error) {
	defer o.done("get", time.Now(), &err)
	return o.Store.Get(ctx, id)
}

func (o *observed) Update(ctx context.Context, id, text string) (msg *Message, err error) {
	defer o.done("update", time.Now(), &err)
	return o.Store.Update(ctx, id, text)
}

func (o *observed) Delete(ctx context.Context, id string) (err error) {
	defer o.done("delete", time.Now(), &err)
	return o.Store.Delete(ctx, id)
}

func (o *observed) done(op string, since time.Time, err *error) {
	o.obs.StoreDone(op, since, *err)
}
