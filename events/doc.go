// Package events defines what a tutoring session reports while it runs: its
// start and end, committed speech from either side, tool invocations, pipeline
// metrics and failures.
//
// Every event carries a Header with the session id, the room name and a
// timestamp. Events cross process boundaries as JSON (see ToJSON and FromJSON)
// and are delivered to a Hook, which has one method per event type:
//
//	switch e := event.(type) {
//	case events.UserSpeech:
//	case events.AgentSpeech:
//	}
package events
