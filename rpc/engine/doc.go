/*
Package engine implements the correlation core of kRPC.

An Engine turns the asynchronous publish/subscribe model of a message broker
into request/response calls. Every request gets a fresh correlation id (16
random bytes, hex encoded) and an entry in the pending table. The request
envelope carries the id and the reply topic of the engine. Replies arriving on
the reply topic are matched to the pending entry by their id.

Each request ends exactly once, with one of:

  - the reply (data or a *common.BusinessError)
  - a *common.TimeoutError after ClientConfig.Timeout
  - a *common.TransportError if the publish or the reply subscription failed
  - common.ErrCanceled after Cancel or when the context of the request is done
  - common.ErrEngineClosed after Close

All terminators race on removing the pending entry, only the one that removes
it runs the callback. Replies for unknown ids (late, cancelled or addressed to
another engine sharing the reply topic) and undecodable replies are logged and
dropped.

The reply subscription is created with the first request and shared by all
requests of the engine.
*/
package engine
