// Package slave implements the time-following role.
//
// A Slave consumes Sync, FollowUp and DelayResp datagrams on one socket and
// drives a per-round state machine:
//
//	Cleared --Sync--> SyncReceived --FollowUp/DelayReq--> FollowUpReceived --DelayResp--> Cleared
//
// Any message arriving out of order resets the machine to Cleared. Every
// completed round adds one sample to a bounded window and publishes the window
// mean as a ChangeOffset notification. Notifications are delivered in order
// through a bounded queue; a consumer that closes the queue stops the slave.
package slave
