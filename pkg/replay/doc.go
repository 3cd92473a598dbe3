/*
Package replay records message traffic for later inspection.

The runtime feeds every received and sent message into a Log when one is
configured. Logs export to and load from JSON files, so a session can be
captured on one machine and examined on another.
*/
package replay
