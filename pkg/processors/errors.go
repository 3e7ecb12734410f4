/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package processors

import "errors"

var (
	errUnknownTopic = errors.New("unknown batch topic")

	// ErrUnknownOperator is reported when an alert rule carries an operator
	// outside gt/gte/lt/lte/eq.
	ErrUnknownOperator = errors.New("unknown alert rule operator")
)
