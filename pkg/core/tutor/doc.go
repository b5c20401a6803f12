// Package tutor implements the conversational core of a live tutoring
// session: the turn coordinator, the speech output queue, the ambient
// emotion sampler, the work-capture flow, and the silence watcher.
//
// The package is transport-independent. A host (the gateway's live
// WebSocket session, or the console client) supplies the collaborators —
// chat, emotion classification, work analysis, speech synthesis, frame
// capture, audio playback — and drives the core with events:
//
//	coordinator.UserSpeechDetected()        // onset: cancel playback
//	coordinator.UserSpeechFinalized(text)   // finalized utterance
//	workCapture.Trigger(ctx)                // explicit "show work"
//	sampler.SetVisible(false)               // tab hidden
//
// All AI-generated speech funnels through the Coordinator and its
// SpeechQueue: the ambient sampler and work-capture flow never speak on
// their own. Chat requests are serialized through a single in-flight slot,
// so each request is built from the just-updated turn history and replies
// land in request-issue order.
package tutor
