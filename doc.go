// SheetFlow - LLM assisted spreadsheet extraction in Go
//
// SheetFlow extracts data rows from heterogeneous spreadsheets (payroll and
// pension fund files in many in-house layouts) into a single normalized
// output file. Known layouts are described in a parametrization file; an LLM
// locates the header of each incoming file and matches it against the known
// templates, and the matching template's column mapping projects the data
// rows into the output columns.
//
// Around the extraction pipeline the module provides:
//
//   - agent: question answering over tables, retrieval augmented answering
//     over a vector store, and email reply drafting
//   - rag: document loaders (CSV, web pages, EML), vector stores (in-memory,
//     Chroma, Pinecone) and the shared document shapes
//   - finetune: the fine-tuned model lifecycle with guarded deletion
//   - flow: the small state graph runner pipelines are built on
//   - langflow: a client for flows hosted on a LangFlow server
//   - store: run history (SQLite or PostgreSQL) and a Redis result cache
//   - trace: an optional LangSmith compatible tracing sink
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/sheetflow-ai/sheetflow/cmd/sheetflow@latest
//
// Then, with OPENAI_API_KEY set and a templates.csv describing the known
// layouts:
//
//	sheetflow extract --input ./docs_input --output ./master.csv
package sheetflow
