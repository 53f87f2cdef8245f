// Package common provides the data structures and utilities shared by all
// parts of the kRPC system. It defines the wire envelopes, the user service
// operation payloads, configuration structures, the error taxonomy and the
// logging setup.
//
// Key Components:
//
//   - RequestEnvelope / ReplyEnvelope: the JSON messages exchanged over the
//     broker. A request carries a correlation id and the reply-to topic around
//     the caller's payload, a reply echoes the correlation id and carries
//     either data or an error message.
//
//   - Operation payloads: request and result structures of the user service
//     (CREATE_USER, GET_USER, UPDATE_USER, DELETE_USER, LIST_USERS) with
//     factory functions.
//
//   - BrokerConfig, ClientConfig, ServerConfig: configuration for transports,
//     engines and service handlers, with String() methods for startup output.
//
//   - Errors: TransportError, TimeoutError and BusinessError, classified with
//     errors.Is against ErrTransport, ErrTimeout and ErrBusiness.
//
//   - Logger: custom formatting for dragonboat's logger package which is used
//     as the logging facade throughout the module.
package common
