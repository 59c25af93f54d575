// Copyright 2025 Antfly, Inc.
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

// Package tokenizer wraps the skill tagger's WordPiece tokenizer so input can
// be measured and split in model token ids.
package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/decoder"
	"github.com/sugarme/tokenizer/model"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"github.com/sugarme/tokenizer/processor"
	"github.com/sugarme/tokenizer/util"
)

// WordPieceTokenizer encodes text to model token ids and back.
// Safe for concurrent use once constructed.
type WordPieceTokenizer struct {
	tokenizer *tokenizer.Tokenizer
}

// LoadWordPieceTokenizer loads the tokenizer shipped with a model: tokenizer.json
// when present, otherwise a BERT-style tokenizer built from vocab.txt.
func LoadWordPieceTokenizer(modelPath string) (*WordPieceTokenizer, error) {
	jsonPath := filepath.Join(modelPath, "tokenizer.json")
	if _, err := os.Stat(jsonPath); err == nil {
		tk, err := pretrained.FromFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", jsonPath, err)
		}
		return &WordPieceTokenizer{tokenizer: tk}, nil
	}

	vocabPath := filepath.Join(modelPath, "vocab.txt")
	vocab, err := readVocab(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("no tokenizer.json or vocab.txt in %s: %w", modelPath, err)
	}
	return NewWordPieceTokenizer(vocab)
}

func readVocab(path string) (model.Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(model.Vocab)
	scanner := bufio.NewScanner(f)
	for i := 0; scanner.Scan(); i++ {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			vocab[line] = i
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocab: %w", err)
	}
	return vocab, nil
}

// NewWordPieceTokenizer builds an uncased BERT tokenizer over vocab.
// The vocab must contain [UNK], [CLS] and [SEP].
func NewWordPieceTokenizer(vocab model.Vocab) (*WordPieceTokenizer, error) {
	opts := util.NewParams(map[string]any{
		"unk_token": "[UNK]",
	})
	wp, err := wordpiece.New(vocab, opts)
	if err != nil {
		return nil, fmt.Errorf("creating wordpiece model: %w", err)
	}

	tk := tokenizer.NewTokenizer(wp)
	tk.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	tk.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	sepID, ok := tk.TokenToId("[SEP]")
	if !ok {
		return nil, errors.New("cannot find ID for [SEP] token")
	}
	clsID, ok := tk.TokenToId("[CLS]")
	if !ok {
		return nil, errors.New("cannot find ID for [CLS] token")
	}
	tk.WithPostProcessor(processor.NewBertProcessing(
		processor.PostToken{Id: sepID, Value: "[SEP]"},
		processor.PostToken{Id: clsID, Value: "[CLS]"},
	))
	tk.AddSpecialTokens([]tokenizer.AddedToken{
		tokenizer.NewAddedToken("[SEP]", true),
		tokenizer.NewAddedToken("[CLS]", true),
	})
	// DefaultWordpieceDecoder leaves the embedded DecoderBase unset and panics on Decode.
	tk.WithDecoder(decoder.NewWordPieceDecoder("##", true))

	return &WordPieceTokenizer{tokenizer: tk}, nil
}

// Encode returns the token ids of text without special tokens.
// github.com/sugarme/tokenizer can panic inside BertNormalizer on some
// inputs; Encode returns nil in that case, as it does on error.
func (t *WordPieceTokenizer) Encode(text string) (ids []int) {
	if text == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			ids = nil
		}
	}()

	enc, err := t.tokenizer.EncodeSingle(text, false)
	if err != nil {
		return nil
	}
	return enc.Ids
}

// Decode turns ids back into text, skipping special tokens.
func (t *WordPieceTokenizer) Decode(ids []int) (text string) {
	if len(ids) == 0 {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	return t.tokenizer.Decode(ids, true)
}
