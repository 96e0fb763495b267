// Package activity describes persistence occurrences as events and fans them
// out to hooks.
//
// The plugin emits two verbs: VerbRecordWritten after every successful record
// write and VerbStoreRehydrated after a stored record has been patched back
// into a store. Hooks receive normalized events; their errors are joined and
// reported to the caller of Notify, which for the plugin means they are
// logged and never fail a write.
package activity
