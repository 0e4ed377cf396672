// ABOUTME: Resource fetcher package documentation
// ABOUTME: Explains how audio sources are located and cached
// Package fetch opens audio resources named by local path, file:// URL or
// http(s):// URL. Remote resources can be downloaded into a disk cache keyed
// by a hash of the URL so repeated loads avoid the network.
package fetch
