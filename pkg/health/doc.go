/*
Package health implements HTTPChecker, a reusable request/timeout/
status-range probe. pkg/api's task-probe endpoint uses it to report
whether a task's registered dispatch target currently answers over
HTTP, without affecting dispatch accounting itself.
*/
package health
