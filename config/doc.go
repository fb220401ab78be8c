// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads the YAML configuration shared by the phrasebook
// commands.
//
// A file has a store section, an optional embedding section (an ai.Config;
// when absent only lexical indexes are built), a search section with the
// retrieval limits and scoring weights, and a languages list of profile
// overrides:
//
//	store:
//	  path: ~/.local/share/phrasebook
//	embedding:
//	  backend: openai
//	  embedding_host: http://localhost:11434
//	  embedding_model: all-minilm
//	  api_token: ${OPENAI_API_KEY}
//	search:
//	  short_list_size: 5
//	languages:
//	  - code: de
//	    mode: conservative
//	    stop_words: [der, die, das, und]
//
// Environment variables are expanded before decoding and unknown keys are
// an error.
package config
