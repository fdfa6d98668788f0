/*
Package adminclient is the CLI-facing counterpart to pkg/httpapi's admin
routes: Client.ListBlocks/AddBlock/RemoveBlock, ListAllows/AddAllow/
RemoveAllow, and ListListeners/RemoveListener each issue one bearer-token
authenticated HTTP request and decode its JSON response, so cmd/relay
never constructs an *http.Request by hand.
*/
package adminclient
