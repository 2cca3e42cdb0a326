// Package master implements the reference side of the protocol.
//
// A master runs two loops over one UDP socket. The beacon loop sends a Sync
// and a FollowUp carrying the Sync send time once per period to the target
// address. The responder loop answers every DelayReq with a DelayResp carrying
// its receive time, sent back to the requester. Neither loop ever stops on a
// network or decode error; both stop when the context is canceled.
package master
