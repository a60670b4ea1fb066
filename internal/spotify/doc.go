// package spotify is the upstream client for the Spotify Web API.
//
// It has two halves: the Exchanger, which turns authorization codes and
// refresh tokens into credentials at the token endpoint, and the Client, a set
// of stateless per-endpoint calls that each take an access token and map one
// REST response into the canonical shapes in [models].
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package spotify
