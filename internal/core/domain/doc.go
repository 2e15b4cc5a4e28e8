// Package domain holds the types shared by every layer of pagewise: pages
// and chunks produced during ingestion, document processing state, search
// results and RAG answers, plus the settings that shape them.
//
// It imports only the standard library.
package domain
