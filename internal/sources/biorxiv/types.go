// Package biorxiv implements the bioRxiv/medRxiv source adapter. Preprint
// metadata is served through the Europe PMC REST API, filtered down to the
// configured preprint server.
package biorxiv

// SearchResponse is the top-level Europe PMC search payload.
type SearchResponse struct {
	HitCount       int        `json:"hitCount"`
	NextCursorMark string     `json:"nextCursorMark"`
	ResultList     ResultList `json:"resultList"`
}

// ResultList holds the page of article records.
type ResultList struct {
	Result []Article `json:"result"`
}

// Article is one preprint record. Europe PMC encodes most fields as strings,
// including years and Y/N booleans.
type Article struct {
	ID                   string `json:"id"`
	Source               string `json:"source"` // "PPR"
	PMID                 string `json:"pmid"`
	PMCID                string `json:"pmcid"`
	DOI                  string `json:"doi"`
	Title                string `json:"title"`
	AuthorString         string `json:"authorString"` // "Author A, Author B"
	JournalTitle         string `json:"journalTitle"`
	JournalVolume        string `json:"journalVolume"`
	PubYear              string `json:"pubYear"`
	AbstractText         string `json:"abstractText"`
	IsOpenAccess         string `json:"isOpenAccess"`
	CitedByCount         int    `json:"citedByCount"`
	FirstPublicationDate string `json:"firstPublicationDate"` // "YYYY-MM-DD"
	PublisherName        string `json:"publisherName"`        // "bioRxiv" or "medRxiv"
}
